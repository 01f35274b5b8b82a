// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import "log/slog"

type PostgresOptionFunc func(*MetadataStorePostgres)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) PostgresOptionFunc {
	return func(p *MetadataStorePostgres) {
		p.logger = logger
	}
}

// WithHost specifies the postgres host
func WithHost(host string) PostgresOptionFunc {
	return func(p *MetadataStorePostgres) {
		p.host = host
	}
}

// WithPort specifies the postgres port
func WithPort(port uint) PostgresOptionFunc {
	return func(p *MetadataStorePostgres) {
		p.port = port
	}
}

// WithUser specifies the postgres user
func WithUser(user string) PostgresOptionFunc {
	return func(p *MetadataStorePostgres) {
		p.user = user
	}
}

// WithPassword specifies the postgres password
func WithPassword(password string) PostgresOptionFunc {
	return func(p *MetadataStorePostgres) {
		p.password = password
	}
}

// WithDatabase specifies the postgres database name
func WithDatabase(database string) PostgresOptionFunc {
	return func(p *MetadataStorePostgres) {
		p.database = database
	}
}

// WithSSLMode specifies the postgres sslmode
func WithSSLMode(sslMode string) PostgresOptionFunc {
	return func(p *MetadataStorePostgres) {
		p.sslMode = sslMode
	}
}

// WithTimeZone specifies the postgres TimeZone
func WithTimeZone(timeZone string) PostgresOptionFunc {
	return func(p *MetadataStorePostgres) {
		p.timeZone = timeZone
	}
}

// WithDSN specifies a full postgres DSN string and takes precedence over
// individual connection options.
func WithDSN(dsn string) PostgresOptionFunc {
	return func(p *MetadataStorePostgres) {
		p.dsn = dsn
	}
}

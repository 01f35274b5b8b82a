//go:build windows

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

package keystore

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func TestCheckSDDL(t *testing.T) {
	testDefs := []struct {
		sddl     string
		expected string
	}{
		{sddl: "O:BAD:(A;;GR;;;WD)", expected: "Everyone"},
		{sddl: "D:(A;;GR;;;BU)", expected: "BUILTIN\\Users"},
		{sddl: "D:P(A;;GR;;;S-1-5-11)", expected: "Authenticated Users"},
		{sddl: "O:BA", expected: "no DACL"},
		{sddl: "D:P(A;;GA;;;SY)(D;;GA;;;WD)"},
	}
	for _, testDef := range testDefs {
		err := checkSDDL("governance.skey", testDef.sddl)
		if testDef.expected == "" {
			assert.NoError(t, err, testDef.sddl)
			continue
		}
		assert.ErrorIs(t, err, ErrInsecureFileMode, testDef.sddl)
		assert.Contains(t, err.Error(), testDef.expected)
	}
}

func setFileSDDL(t *testing.T, path string, sddl string) {
	t.Helper()
	sd, err := windows.SecurityDescriptorFromString(sddl)
	require.NoError(t, err)
	dacl, _, err := sd.DACL()
	require.NoError(t, err)
	err = windows.SetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION|
			windows.PROTECTED_DACL_SECURITY_INFORMATION,
		nil, nil, dacl, nil,
	)
	require.NoError(t, err)
}

func currentUserSID(t *testing.T) string {
	t.Helper()
	var token windows.Token
	err := windows.OpenProcessToken(
		windows.CurrentProcess(),
		windows.TOKEN_QUERY,
		&token,
	)
	require.NoError(t, err)
	defer token.Close()
	tokenUser, err := token.GetTokenUser()
	require.NoError(t, err)
	return tokenUser.User.Sid.String()
}

func TestLoadKeyFileWindowsACL(t *testing.T) {
	ks := NewKeyStore(KeyStoreConfig{Dir: t.TempDir()})
	_, err := ks.Generate("maintainer", "")
	require.NoError(t, err)
	path := filepath.Join(ks.dir, "maintainer.skey")

	setFileSDDL(t, path, fmt.Sprintf("D:P(A;;GA;;;%s)", currentUserSID(t)))
	_, err = LoadKeyFile(path)
	require.NoError(t, err)

	setFileSDDL(t, path, fmt.Sprintf("D:P(A;;GA;;;%s)(A;;GR;;;WD)", currentUserSID(t)))
	_, err = LoadKeyFile(path)
	assert.ErrorIs(t, err, ErrInsecureFileMode)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

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

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/mergegate/governance"
	"github.com/blinklabs-io/mergegate/internal/config"
	"github.com/blinklabs-io/mergegate/internal/service"
	"github.com/blinklabs-io/mergegate/keystore"
	"github.com/spf13/cobra"
)

var keyDir string

func openKeyStore(cmd *cobra.Command) (*keystore.KeyStore, error) {
	dir := keyDir
	if dir == "" {
		cfg := config.FromContext(cmd.Context())
		if cfg == nil {
			return nil, errors.New("no config found in context")
		}
		dir = filepath.Join(cfg.DatabasePath, "keys")
	}
	return keystore.NewKeyStore(keystore.KeyStoreConfig{
		Logger: commonRun(os.Stderr),
		Dir:    dir,
	}), nil
}

func keysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage governance signing keys",
	}
	cmd.PersistentFlags().StringVar(&keyDir, "key-dir", "", "key directory (default <databasePath>/keys)")
	cmd.AddCommand(
		keysGenerateCommand(),
		keysListCommand(),
		keysSignVetoCommand(),
		keysSignEmergencyCommand(),
	)
	return cmd
}

func keysGenerateCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "generate <name>",
		Short: "Generate a secp256k1 signing key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := openKeyStore(cmd)
			if err != nil {
				return err
			}
			key, err := ks.Generate(args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", key.Name, key.PublicKeyHex())
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "free form key description")
	return cmd
}

func keysListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List keys and their public keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := openKeyStore(cmd)
			if err != nil {
				return err
			}
			names, err := ks.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				key, err := ks.Load(name)
				if err != nil {
					return fmt.Errorf("key %s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, key.PublicKeyHex())
			}
			return nil
		},
	}
}

func keysSignVetoCommand() *cobra.Command {
	var (
		keyName    string
		proposalID uint64
		entityName string
	)
	cmd := &cobra.Command{
		Use:   "sign-veto",
		Short: "Sign a veto signal message for a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := openKeyStore(cmd)
			if err != nil {
				return err
			}
			key, err := ks.Load(keyName)
			if err != nil {
				return err
			}
			sig := key.Sign(governance.VetoSignalMessage(proposalID, entityName))
			fmt.Fprintln(cmd.OutOrStdout(), sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "key name")
	cmd.Flags().Uint64Var(&proposalID, "proposal", 0, "proposal (pull request) number")
	cmd.Flags().StringVar(&entityName, "entity", "", "entity name the node registered with")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("proposal")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func keysSignEmergencyCommand() *cobra.Command {
	var (
		keyName     string
		keyholder   string
		file        string
		emergencyID string
	)
	cmd := &cobra.Command{
		Use:   "sign-emergency",
		Short: "Sign an emergency activation request or the next extension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (file == "") == (emergencyID == "") {
				return errors.New("exactly one of --file or --extend is required")
			}
			ks, err := openKeyStore(cmd)
			if err != nil {
				return err
			}
			key, err := ks.Load(keyName)
			if err != nil {
				return err
			}
			ts := time.Now().UTC().Truncate(time.Second)
			var message []byte
			if file != "" {
				var activation governance.EmergencyActivation
				if err := readJSONFile(file, &activation); err != nil {
					return err
				}
				message, err = governance.ActivationSigningMessage(&activation, keyholder, ts)
				if err != nil {
					return err
				}
			} else {
				err = withService(cmd, func(svc *service.Service) error {
					emergency, err := svc.Engine().Emergencies().GetEmergency(emergencyID)
					if err != nil {
						return err
					}
					message, err = governance.ExtensionSigningMessage(emergency, keyholder, ts)
					return err
				})
				if err != nil {
					return err
				}
			}
			return printJSON(cmd, governance.KeyholderSignature{
				Keyholder: keyholder,
				PublicKey: key.PublicKeyHex(),
				Signature: key.Sign(message),
				Timestamp: ts,
			})
		},
	}
	cmd.Flags().StringVar(&keyName, "key", "", "key name")
	cmd.Flags().StringVar(&keyholder, "keyholder", "", "keyholder identity")
	cmd.Flags().StringVar(&file, "file", "", "activation request JSON to sign")
	cmd.Flags().StringVar(&emergencyID, "extend", "", "emergency id to sign the next extension for")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("keyholder")
	return cmd
}

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
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/blinklabs-io/mergegate/governance"
	"github.com/blinklabs-io/mergegate/internal/service"
	"github.com/spf13/cobra"
)

func emergencyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emergency",
		Short: "Keyholder emergency actions",
	}
	cmd.AddCommand(
		emergencyActivateCommand(),
		emergencyExtendCommand(),
		emergencyStatusCommand(),
	)
	return cmd
}

func readJSONFile(path string, v any) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func emergencyActivateCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate an emergency from a signed activation request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var activation governance.EmergencyActivation
			if err := readJSONFile(file, &activation); err != nil {
				return err
			}
			return withService(cmd, func(svc *service.Service) error {
				emergency, err := svc.Engine().Emergencies().ActivateEmergency(&activation)
				if err != nil {
					return err
				}
				return printJSON(cmd, emergency)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "activation request JSON with keyholder signatures")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func emergencyExtendCommand() *cobra.Command {
	var (
		emergencyID string
		file        string
	)
	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Extend an active emergency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var signatures []governance.KeyholderSignature
			if err := readJSONFile(file, &signatures); err != nil {
				return err
			}
			return withService(cmd, func(svc *service.Service) error {
				emergency, err := svc.Engine().Emergencies().ExtendEmergency(
					emergencyID,
					signatures,
				)
				if err != nil {
					return err
				}
				return printJSON(cmd, emergency)
			})
		},
	}
	cmd.Flags().StringVar(&emergencyID, "id", "", "emergency id")
	cmd.Flags().StringVar(&file, "signatures", "", "JSON array of keyholder signatures")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("signatures")
	return cmd
}

func emergencyStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the emergency currently in force",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(svc *service.Service) error {
				emergency, err := svc.Engine().Emergencies().CurrentEmergency()
				if errors.Is(err, governance.ErrEmergencyNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "no active emergency")
					return nil
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, emergency)
			})
		},
	}
}

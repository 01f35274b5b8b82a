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

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/governance"
	"github.com/blinklabs-io/mergegate/internal/service"
	"github.com/spf13/cobra"
)

func vetoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "veto",
		Short: "Economic node veto signals",
	}
	cmd.AddCommand(
		vetoSignalCommand(),
		vetoOverrideCommand(),
		vetoStatusCommand(),
	)
	return cmd
}

func vetoSignalCommand() *cobra.Command {
	var (
		proposalID uint64
		nodeID     uint
		signalType string
		signature  string
		rationale  string
	)
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Record a signed veto or support signal from an active node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if proposalID == 0 || nodeID == 0 {
				return errors.New("--proposal and --node are required")
			}
			st, err := models.ParseSignalType(signalType)
			if err != nil {
				return err
			}
			return withService(cmd, func(svc *service.Service) error {
				veto := svc.Engine().Veto()
				if _, err := veto.CollectVetoSignal(
					proposalID,
					nodeID,
					st,
					signature,
					rationale,
				); err != nil {
					return err
				}
				state, err := veto.GetVetoState(proposalID)
				if err != nil {
					return err
				}
				return printJSON(cmd, state)
			})
		},
	}
	cmd.Flags().Uint64Var(&proposalID, "proposal", 0, "proposal (pull request) number")
	cmd.Flags().UintVar(&nodeID, "node", 0, "economic node id")
	cmd.Flags().StringVar(&signalType, "type", "veto", "signal type: veto or support")
	cmd.Flags().StringVar(&signature, "signature", "", "hex encoded signature from 'keys sign-veto'")
	cmd.Flags().StringVar(&rationale, "rationale", "", "reason for the signal")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func vetoOverrideCommand() *cobra.Command {
	var (
		proposalID uint64
		maintainer string
	)
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Override an active veto after its review period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(svc *service.Service) error {
				state, err := svc.Engine().Veto().OverrideVeto(proposalID, maintainer)
				if err != nil {
					return err
				}
				return printJSON(cmd, state)
			})
		},
	}
	cmd.Flags().Uint64Var(&proposalID, "proposal", 0, "proposal (pull request) number")
	cmd.Flags().StringVar(&maintainer, "maintainer", "", "maintainer performing the override")
	_ = cmd.MarkFlagRequired("proposal")
	_ = cmd.MarkFlagRequired("maintainer")
	return cmd
}

type vetoStatus struct {
	State   *governance.VetoThreshold `json:"state"`
	Signals []models.VetoSignal       `json:"signals"`
}

func vetoStatusCommand() *cobra.Command {
	var proposalID uint64
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Re-check the veto threshold of a proposal and show its signals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(svc *service.Service) error {
				veto := svc.Engine().Veto()
				state, err := veto.CheckVetoThreshold(proposalID)
				if err != nil {
					return err
				}
				signals, err := veto.GetVetoSignals(proposalID)
				if err != nil {
					return err
				}
				return printJSON(cmd, vetoStatus{State: state, Signals: signals})
			})
		},
	}
	cmd.Flags().Uint64Var(&proposalID, "proposal", 0, "proposal (pull request) number")
	_ = cmd.MarkFlagRequired("proposal")
	return cmd
}

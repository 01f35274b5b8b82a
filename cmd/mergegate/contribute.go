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
	"time"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/internal/service"
	"github.com/spf13/cobra"
)

func contributeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contribute",
		Short: "Record contributions that feed participation weights",
	}
	cmd.AddCommand(
		contributeAmountCommand(
			"merge-mining",
			"Record merge mining revenue",
			func(svc *service.Service, id string, ct models.ContributorType, amount float64, ts time.Time) error {
				return svc.Engine().Contributions().RecordMergeMiningContribution(id, ct, amount, ts)
			},
		),
		contributeAmountCommand(
			"fee-forwarding",
			"Record forwarded fees",
			func(svc *service.Service, id string, ct models.ContributorType, amount float64, ts time.Time) error {
				return svc.Engine().Contributions().RecordFeeForwardingContribution(id, ct, amount, ts)
			},
		),
		contributeZapCommand(),
		contributeSetActiveCommand("activate", "Count a contributor in weight updates", true),
		contributeSetActiveCommand("deactivate", "Exclude a contributor from weight updates", false),
	)
	return cmd
}

type recordFunc func(
	svc *service.Service,
	contributorID string,
	contributorType models.ContributorType,
	amountBtc float64,
	timestamp time.Time,
) error

func contributeAmountCommand(use, short string, record recordFunc) *cobra.Command {
	var (
		contributorID   string
		contributorType string
		amountBtc       float64
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ct, err := models.ParseContributorType(contributorType)
			if err != nil {
				return err
			}
			return withService(cmd, func(svc *service.Service) error {
				if err := record(svc, contributorID, ct, amountBtc, time.Now().UTC()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recorded %s %.8f BTC for %s\n", use, amountBtc, contributorID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&contributorID, "contributor", "", "contributor id")
	cmd.Flags().StringVar(&contributorType, "type", "individual", "contributor type: individual, mining_pool, exchange, custodian or node_operator")
	cmd.Flags().Float64Var(&amountBtc, "amount", 0, "amount in BTC")
	_ = cmd.MarkFlagRequired("contributor")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func contributeZapCommand() *cobra.Command {
	var (
		contributorID string
		amountBtc     float64
		proposalID    uint64
	)
	cmd := &cobra.Command{
		Use:   "zap",
		Short: "Record a zap, optionally tied to a proposal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var pid *uint64
			if cmd.Flags().Changed("proposal") {
				if proposalID == 0 {
					return errors.New("proposal must be non-zero")
				}
				pid = &proposalID
			}
			return withService(cmd, func(svc *service.Service) error {
				if err := svc.Engine().Contributions().RecordZapContribution(
					contributorID,
					amountBtc,
					pid,
					time.Now().UTC(),
				); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recorded zap %.8f BTC for %s\n", amountBtc, contributorID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&contributorID, "contributor", "", "contributor id")
	cmd.Flags().Float64Var(&amountBtc, "amount", 0, "zap amount in BTC")
	cmd.Flags().Uint64Var(&proposalID, "proposal", 0, "proposal (pull request) the zap was sent to")
	_ = cmd.MarkFlagRequired("contributor")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func contributeSetActiveCommand(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <contributor>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.Service) error {
				recorder := svc.Engine().Contributions()
				if active {
					return recorder.ActivateContributor(args[0])
				}
				return recorder.DeactivateContributor(args[0])
			})
		},
	}
}

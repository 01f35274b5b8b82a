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
	"log/slog"
	"os"

	"github.com/blinklabs-io/mergegate/governance"
	"github.com/blinklabs-io/mergegate/internal/config"
	"github.com/blinklabs-io/mergegate/internal/service"
	"github.com/spf13/cobra"
)

func serveRun(_ *cobra.Command, _ []string, cfg *config.Config) {
	logger := commonRun(os.Stdout)
	if err := service.Run(cfg, logger); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled governance jobs and post merge status checks",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			serveRun(cmd, args, cfg)
		},
	}
}

func updateWeightsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update-weights",
		Short: "Recompute participation weights for every contributor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(svc *service.Service) error {
				result, err := svc.Engine().Weights().UpdateParticipationWeights()
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
}

func decideCommand() *cobra.Command {
	var input governance.MergeInput
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Decide whether a proposal may merge and record the decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input.ProposalID == 0 {
				return errors.New("--proposal is required")
			}
			return withService(cmd, func(svc *service.Service) error {
				decision, err := svc.Engine().DecideMerge(input)
				if err != nil {
					return err
				}
				return printJSON(cmd, decision)
			})
		},
	}
	cmd.Flags().Uint64Var(&input.ProposalID, "proposal", 0, "proposal (pull request) number")
	cmd.Flags().Uint32Var(&input.Tier, "tier", 1, "proposal tier (1-5)")
	cmd.Flags().BoolVar(&input.ReviewPeriodMet, "review-period-met", false, "review period has elapsed")
	cmd.Flags().BoolVar(&input.SignaturesMet, "signatures-met", false, "maintainer signature threshold is met")
	cmd.Flags().BoolVar(&input.EconomicVetoActive, "economic-veto", false, "economic veto is active (tier 3 and above read the stored veto state instead)")
	cmd.Flags().BoolVar(&input.EmergencyMode, "emergency", false, "evaluate under emergency mode; ignored unless an emergency is in force")
	return cmd
}

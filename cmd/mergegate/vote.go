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
	"time"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/internal/service"
	"github.com/spf13/cobra"
)

func voteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Zap and participation votes",
	}
	cmd.AddCommand(
		voteZapCommand(),
		voteParticipateCommand(),
		voteAggregateCommand(),
	)
	return cmd
}

func voteZapCommand() *cobra.Command {
	var (
		proposalID uint64
		eventID    string
		sender     string
		amountBtc  float64
		voteType   string
	)
	cmd := &cobra.Command{
		Use:   "zap",
		Short: "Record a zap vote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vt, err := models.ParseVoteType(voteType)
			if err != nil {
				return err
			}
			return withService(cmd, func(svc *service.Service) error {
				vote, err := svc.Engine().Votes().RecordZapVote(
					proposalID,
					eventID,
					sender,
					amountBtc,
					vt,
					time.Now().UTC(),
				)
				if err != nil {
					return err
				}
				return printJSON(cmd, vote)
			})
		},
	}
	cmd.Flags().Uint64Var(&proposalID, "proposal", 0, "proposal (pull request) number")
	cmd.Flags().StringVar(&eventID, "event", "", "governance event id of the zap")
	cmd.Flags().StringVar(&sender, "sender", "", "sender public key")
	cmd.Flags().Float64Var(&amountBtc, "amount", 0, "zap amount in BTC")
	cmd.Flags().StringVar(&voteType, "type", "support", "vote type: support, veto or abstain")
	_ = cmd.MarkFlagRequired("proposal")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("sender")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func voteParticipateCommand() *cobra.Command {
	var (
		proposalID    uint64
		contributorID string
	)
	cmd := &cobra.Command{
		Use:   "participate",
		Short: "Record a participation vote from a contributor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(svc *service.Service) error {
				vote, err := svc.Engine().Votes().RecordParticipationVote(
					proposalID,
					contributorID,
				)
				if err != nil {
					return err
				}
				return printJSON(cmd, vote)
			})
		},
	}
	cmd.Flags().Uint64Var(&proposalID, "proposal", 0, "proposal (pull request) number")
	cmd.Flags().StringVar(&contributorID, "contributor", "", "contributor id")
	_ = cmd.MarkFlagRequired("proposal")
	_ = cmd.MarkFlagRequired("contributor")
	return cmd
}

func voteAggregateCommand() *cobra.Command {
	var (
		proposalID uint64
		tier       uint32
	)
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Tally the votes on a proposal against its tier threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(svc *service.Service) error {
				votes, err := svc.Engine().Votes().AggregateProposalVotes(proposalID, tier)
				if err != nil {
					return err
				}
				return printJSON(cmd, votes)
			})
		},
	}
	cmd.Flags().Uint64Var(&proposalID, "proposal", 0, "proposal (pull request) number")
	cmd.Flags().Uint32Var(&tier, "tier", 1, "proposal tier (1-5)")
	_ = cmd.MarkFlagRequired("proposal")
	return cmd
}

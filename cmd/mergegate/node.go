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
	"strconv"

	"github.com/blinklabs-io/mergegate/database/models"
	"github.com/blinklabs-io/mergegate/governance"
	"github.com/blinklabs-io/mergegate/internal/service"
	"github.com/spf13/cobra"
)

func nodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage economic nodes",
	}
	cmd.AddCommand(
		nodeRegisterCommand(),
		nodeStatusCommand("activate", "Activate a pending or suspended node"),
		nodeStatusCommand("suspend", "Suspend a node"),
		nodeListCommand(),
	)
	return cmd
}

func nodeRegisterCommand() *cobra.Command {
	var (
		reg      governance.NodeRegistration
		nodeType string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an economic node as pending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := models.ParseNodeType(nodeType)
			if err != nil {
				return err
			}
			reg.NodeType = t
			return withService(cmd, func(svc *service.Service) error {
				node, err := svc.Engine().Veto().RegisterNode(reg)
				if err != nil {
					return err
				}
				return printJSON(cmd, node)
			})
		},
	}
	cmd.Flags().StringVar(&reg.EntityName, "name", "", "entity name")
	cmd.Flags().StringVar(&reg.PublicKey, "pubkey", "", "hex encoded secp256k1 public key")
	cmd.Flags().StringVar(&nodeType, "type", "mining_pool", "node type: mining_pool, exchange or custodian")
	cmd.Flags().Float64Var(&reg.Qualification.HashpowerPercent, "hashpower", 0, "share of network hashpower in percent")
	cmd.Flags().Float64Var(&reg.Qualification.HoldingsBtc, "holdings", 0, "BTC held in custody")
	cmd.Flags().Float64Var(&reg.Qualification.DailyVolumeUsd, "daily-volume", 0, "daily trading volume in USD")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("pubkey")
	return cmd
}

func nodeStatusCommand(action string, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <node-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeID, err := parseNodeID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(svc *service.Service) error {
				var node *models.EconomicNode
				var err error
				if action == "activate" {
					node, err = svc.Engine().Veto().ActivateNode(nodeID)
				} else {
					node, err = svc.Engine().Veto().SuspendNode(nodeID)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, node)
			})
		},
	}
}

func nodeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered economic nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(svc *service.Service) error {
				nodes, err := svc.Engine().Veto().ListNodes()
				if err != nil {
					return err
				}
				return printJSON(cmd, nodes)
			})
		},
	}
}

func parseNodeID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 0)
	if err != nil || id == 0 {
		return 0, errors.New("node id must be a positive integer")
	}
	return uint(id), nil
}

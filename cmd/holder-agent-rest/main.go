/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package holder-agent-rest (Holder Agent REST Server) of holder-agent-go.
//
//
// Terms Of Service:
//
//
//     Schemes: https
//     Version: 0.1.0
//     License: SPDX-License-Identifier: Apache-2.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
// swagger:meta
package main

import (
	"github.com/spf13/cobra"

	"github.com/walletkit/holder-agent-go/cmd/holder-agent-rest/startcmd"
	"github.com/walletkit/holder-agent-go/pkg/common/log"
)

// This is an application which starts the proof sharing controller API on given port.
func main() {
	rootCmd := &cobra.Command{
		Use: "holder-agent-rest",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	logger := log.New("holder-agent/agent-rest")

	startCmd, err := startcmd.Cmd(&startcmd.HTTPServer{})
	if err != nil {
		logger.Fatalf(err.Error())
	}

	rootCmd.AddCommand(startCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to run holder-agent-rest: %s", err)
	}
}

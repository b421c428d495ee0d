// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	serverURL string

	rootCmd = &cobra.Command{
		Use:   "aerialctl",
		Short: "Operate a running AerialBridge hub",
		Long: `aerialctl talks to a live AerialBridge hub: inspect the connected
aerials, tail the sink channel, or push a one-off state update.`,
	}

	aerialsCmd = &cobra.Command{
		Use:   "aerials",
		Short: "List the currently connected aerials and their colors",
		RunE:  runAerials,
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Stream every fullState frame from the sink channel to stdout",
		RunE:  runWatch,
	}

	sendCmd = &cobra.Command{
		Use:   "send <partition> <json>",
		Short: "Push one partial update into a partition via the sink channel",
		Example: `  aerialctl send desk '{"time":"night"}'
  aerialctl send control '{"speed":0.8,"color":{"r":255,"g":0,"b":0}}'`,
		Args: cobra.ExactArgs(2),
		RunE: runSend,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		"http://localhost:3000", "base URL of the bridge hub")

	rootCmd.AddCommand(aerialsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(sendCmd)
}

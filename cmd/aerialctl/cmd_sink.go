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
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// sinkURL converts the configured HTTP base URL into the sink websocket URL.
func sinkURL() string {
	ws := strings.Replace(serverURL, "https://", "wss://", 1)
	ws = strings.Replace(ws, "http://", "ws://", 1)
	return ws + "/td"
}

func runWatch(cmd *cobra.Command, args []string) error {
	conn, _, err := websocket.DefaultDialer.Dial(sinkURL(), nil)
	if err != nil {
		return fmt.Errorf("could not dial the sink channel at %s: %w", sinkURL(), err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-interrupt
		// A close frame lets the hub detach cleanly before we exit.
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		var pretty json.RawMessage = raw
		out, err := json.MarshalIndent(pretty, "", "  ")
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	part, payload := args[0], args[1]
	if !json.Valid([]byte(payload)) {
		return fmt.Errorf("payload is not valid JSON: %s", payload)
	}

	conn, _, err := websocket.DefaultDialer.Dial(sinkURL(), nil)
	if err != nil {
		return fmt.Errorf("could not dial the sink channel at %s: %w", sinkURL(), err)
	}
	defer conn.Close()

	// The hub greets every sink connection with a fullState frame; drain it
	// so the close below is not racing the handshake.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		return fmt.Errorf("sink handshake failed: %w", err)
	}

	frame, _ := json.Marshal(map[string]json.RawMessage{
		"part": json.RawMessage(fmt.Sprintf("%q", part)),
		"data": json.RawMessage(payload),
	})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to send the update: %w", err)
	}

	// The broadcast triggered by our own update confirms it was applied.
	if _, raw, err := conn.ReadMessage(); err == nil {
		var pretty json.RawMessage = raw
		if out, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

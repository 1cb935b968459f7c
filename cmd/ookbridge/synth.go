package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/norasector/ookbridge/pkg/bridge/capture"
	"github.com/norasector/ookbridge/pkg/ook/protocol"
	"github.com/norasector/ookbridge/pkg/ook/protocol/ticpulses"
	"github.com/norasector/ookbridge/pkg/ook/synth"
)

var (
	synthCmd = &cobra.Command{
		Use:   "synth",
		Short: "Print the capture a transmitter would produce for a payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := synthesize(synthProtocol, synthPayload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}

	synthProtocol string
	synthPayload  string
)

func init() {
	synthCmd.Flags().StringVar(&synthProtocol, "protocol", ticpulses.Name, "protocol to encode for")
	synthCmd.Flags().StringVar(&synthPayload, "payload", "", "payload hex, without or with the trailing CRC (which is recomputed)")
	synthCmd.MarkFlagRequired("payload")
}

func synthesize(name, payloadHex string) (string, error) {
	def, err := protocol.Lookup(name)
	if err != nil {
		return "", err
	}
	c := def.Constants()

	data, err := hex.DecodeString(strings.ReplaceAll(payloadHex, " ", ""))
	if err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}
	switch len(data) {
	case c.PayloadBytes - 2:
		data = append(data, 0, 0)
	case c.PayloadBytes:
	default:
		return "", fmt.Errorf("payload is %d bytes, %s wants %d (or %d without CRC)",
			len(data), name, c.PayloadBytes, c.PayloadBytes-2)
	}

	buf, err := synth.Capture(c, def.Sync, data)
	if err != nil {
		return "", err
	}
	return capture.FormatLine(0, buf.Valid()), nil
}

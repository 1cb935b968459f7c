package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/norasector/ookbridge/pkg/bridge"
	"github.com/norasector/ookbridge/pkg/bridge/capture"
	"github.com/norasector/ookbridge/pkg/bridge/config"
	"github.com/norasector/ookbridge/pkg/bridge/output"
	"github.com/norasector/ookbridge/pkg/ook"
	"github.com/norasector/ookbridge/pkg/ook/decoder"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [capture]",
	Short: "Decode captures given as an argument or one per line on stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var decoders []config.Decoder
		if cmd.Flags().Changed("config") {
			c, err := config.Load(configFile)
			if err != nil {
				return err
			}
			decoders = c.Decoders
		}

		d, err := newLineDecoder(decoders, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		if len(args) == 1 {
			return d.decode(args[0])
		}

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if err := d.decode(line); err != nil {
				log.Warn().Err(err).Msg("skipping capture")
			}
		}
		return scanner.Err()
	},
}

// lineDecoder prints an RFLink line for every accepted capture and the reason each
// decoder gave for a rejected one.
type lineDecoder struct {
	registry *decoder.Registry
	out      io.Writer
	seq      byte
}

func newLineDecoder(decoders []config.Decoder, out io.Writer) (*lineDecoder, error) {
	d := &lineDecoder{out: out}

	reg, err := bridge.BuildRegistry(decoders,
		decoder.WithSink(ook.SinkFunc(d.emit)),
		decoder.WithObserver(d),
		decoder.WithLogger(log.Logger))
	if err != nil {
		return nil, err
	}
	reg.SetLogger(log.Logger)
	d.registry = reg
	return d, nil
}

func (d *lineDecoder) decode(line string) error {
	buf, err := capture.ParseLine(line)
	if err != nil {
		return err
	}
	if _, ok := d.registry.Dispatch(buf); !ok {
		fmt.Fprintf(d.out, "# no decoder accepted %d pulses\n", buf.Number)
	}
	return nil
}

func (d *lineDecoder) emit(rec ook.Record) {
	fmt.Fprintln(d.out, output.FormatRFLink(d.seq, bridge.NewReading(rec, time.Now())))
	d.seq++
}

func (d *lineDecoder) Accepted(string) {}

func (d *lineDecoder) Rejected(protocol string, rej *ook.Rejection) {
	fmt.Fprintf(d.out, "# %s: %s\n", protocol, rej.Error())
}

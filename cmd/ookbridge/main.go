package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "ookbridge",
		Short: "Decode 433 MHz OOK pulse captures",
		Long:  "ookbridge decodes OOK pulse captures into sensor readings and forwards them to MQTT, Kafka, Redis, UDP or RFLink style lines.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if debug {
				level = zerolog.DebugLevel
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
		},
		SilenceUsage: true,
	}

	configFile string
	debug      bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "ookbridge.yaml", "YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log every rejected decode attempt")

	rootCmd.AddCommand(runCmd, decodeCmd, analyzeCmd, synthCmd)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("exited program")
	}
}

package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:           "memcap",
	Short:         "Capture, inspect, and replay memcache traffic.",
	Long:          "memcap captures memcache ASCII and meta protocol traffic into an anonymized profile, then replays that profile against a target to reproduce its load shape.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseFlag {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("memcap: fatal")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "enable debug logging")

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(replayCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/memtap/memcap/profile"
)

var analyzeProfileFlag string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize a recorded profile.",
	Long:  "analyze streams a profile's events, tallying them per command variant, and cross-checks the tally against the trailing metadata footer to catch a truncated or corrupted profile.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeProfileFlag == "" {
			return errors.New("--profile is required")
		}

		f, err := os.Open(analyzeProfileFlag)
		if err != nil {
			return errors.Wrapf(err, "analyze: open %s", analyzeProfileFlag)
		}
		defer f.Close()

		streamer := profile.NewStreamer(f)
		counted := make(map[profile.Variant]uint64)
		var total uint64
		var first, last uint64
		connections := make(map[uint16]struct{})

		for {
			ev, ok, err := streamer.Next()
			if err != nil {
				return errors.Wrap(err, "analyze: stream profile")
			}
			if !ok {
				break
			}
			counted[ev.Command]++
			total++
			connections[ev.ConnectionID] = struct{}{}
			if total == 1 {
				first = ev.TimestampMicros
			}
			last = ev.TimestampMicros
		}

		meta, ok := streamer.Metadata()
		if !ok {
			return errors.New("analyze: profile has no trailing metadata footer")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "events:        %d\n", total)
		fmt.Fprintf(cmd.OutOrStdout(), "connections:   %d\n", len(connections))
		fmt.Fprintf(cmd.OutOrStdout(), "span:          %dus\n", last-first)
		for _, v := range []profile.Variant{profile.Get, profile.Set, profile.Delete, profile.Noop} {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-8s %d\n", v.String(), counted[v])
		}

		if meta.TotalEvents != total {
			return errors.Errorf("analyze: metadata reports %d events but streamed %d; profile may be truncated or corrupt", meta.TotalEvents, total)
		}
		for _, v := range []profile.Variant{profile.Get, profile.Set, profile.Delete, profile.Noop} {
			if meta.CommandDistribution[v] != counted[v] {
				return errors.Errorf("analyze: metadata reports %d %s events but streamed %d; profile may be truncated or corrupt", meta.CommandDistribution[v], v.String(), counted[v])
			}
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeProfileFlag, "profile", "", "profile file to analyze (required)")
	analyzeCmd.MarkFlagRequired("profile")
}

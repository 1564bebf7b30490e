package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/memtap/memcap/lifecycle"
	"github.com/memtap/memcap/profile"
	"github.com/memtap/memcap/protocol/memcache"
	"github.com/memtap/memcap/replay"
	"github.com/memtap/memcap/stats"
)

var (
	replayProfileFlag  string
	replayTargetFlag   string
	replayLoopModeFlag string
	replayTimesFlag    int
	replayProtoFlag    string
	replayStatsJSON    string
	replayDeadlineFlag time.Duration
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded profile against a live target.",
	Long:  "replay streams a profile's events and reproduces their load shape against a target host:port, synthesizing deterministic command bytes for each anonymized key rather than any real key or value.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayProfileFlag == "" {
			return errors.New("--profile is required")
		}
		if replayTargetFlag == "" {
			return errors.New("--target is required")
		}

		mode, err := parseMode(replayProtoFlag)
		if err != nil {
			return err
		}

		policy, err := parseLoopPolicy(replayLoopModeFlag, replayTimesFlag)
		if err != nil {
			return err
		}

		f, err := os.Open(replayProfileFlag)
		if err != nil {
			return errors.Wrapf(err, "replay: open %s", replayProfileFlag)
		}
		defer f.Close()
		streamer := profile.NewStreamer(f)

		var exit lifecycle.ExitFlag
		stopSignals := lifecycle.WatchSignals(&exit)
		defer stopSignals()
		stopDeadline := lifecycle.WatchDeadline(&exit, replayDeadlineFlag)
		defer stopDeadline()

		agg := stats.NewAggregator()
		progressStop := make(chan struct{})
		go agg.RunProgressLoop(progressStop)
		defer close(progressStop)

		logrus.WithFields(logrus.Fields{
			"target": replayTargetFlag,
			"mode":   replayProtoFlag,
			"loop":   replayLoopModeFlag,
		}).Info("replay: starting")

		runErr := replay.Run(streamer, policy, replayTargetFlag, mode, &exit, agg)

		if replayStatsJSON != "" {
			if err := writeStatsJSON(agg.Snapshot(), replayStatsJSON); err != nil {
				logrus.WithError(err).Warn("replay: failed to write stats JSON")
			}
		}

		report := agg.Snapshot()
		logrus.WithFields(logrus.Fields{
			"total_operations": report.TotalOperations,
			"throughput":       report.ThroughputPerSec,
			"elapsed_secs":     report.ElapsedSecs,
		}).Info("replay: finished")

		return runErr
	},
}

func parseMode(s string) (memcache.Mode, error) {
	switch s {
	case "", "meta":
		return memcache.Meta, nil
	case "ascii":
		return memcache.ASCII, nil
	default:
		return memcache.ASCII, errors.Errorf("replay: unknown --protocol-mode %q", s)
	}
}

func parseLoopPolicy(mode string, times int) (replay.LoopPolicy, error) {
	switch mode {
	case "", "once":
		return replay.Once(), nil
	case "times":
		if times <= 0 {
			return replay.LoopPolicy{}, errors.New("replay: --times must be positive when --loop-mode=times")
		}
		return replay.Times(times), nil
	case "infinite":
		return replay.Infinite(), nil
	default:
		return replay.LoopPolicy{}, errors.Errorf("replay: unknown --loop-mode %q", mode)
	}
}

func writeStatsJSON(report stats.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "replay: marshal stats")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "replay: write stats file")
}

func init() {
	replayCmd.Flags().StringVar(&replayProfileFlag, "profile", "", "profile file to replay (required)")
	replayCmd.Flags().StringVar(&replayTargetFlag, "target", "localhost:11211", "host:port to replay against")
	replayCmd.Flags().StringVar(&replayLoopModeFlag, "loop-mode", "once", "once, times, or infinite")
	replayCmd.Flags().IntVar(&replayTimesFlag, "times", 1, "iteration count when --loop-mode=times")
	replayCmd.Flags().StringVar(&replayProtoFlag, "protocol-mode", "meta", "ascii or meta")
	replayCmd.Flags().StringVar(&replayStatsJSON, "stats-json", "", "write final stats as JSON to this path")
	replayCmd.Flags().DurationVar(&replayDeadlineFlag, "deadline", 0, "stop replay automatically after this duration (0 disables)")
	replayCmd.MarkFlagRequired("profile")
}

package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/memtap/memcap/anonymize"
	"github.com/memtap/memcap/capture"
	"github.com/memtap/memcap/lifecycle"
	"github.com/memtap/memcap/profile"
	"github.com/memtap/memcap/record"
)

var (
	recordSourceFlag   string
	recordPortFlag     uint16
	recordOutFlag      string
	recordSaltFlag     uint64
	recordHasSaltFlag  bool
	recordBufferFlag   int
	recordDeadlineFlag time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture memcache traffic into an anonymized profile.",
	Long:  "record watches a live interface, an offline capture file, or (where wired) a kernel socket tap, and writes every recognized memcache command into a binary profile with keys replaced by a keyed hash.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if recordOutFlag == "" {
			return errors.New("--out is required")
		}

		src, err := capture.NewSource(recordSourceFlag, recordPortFlag)
		if err != nil {
			return errors.Wrap(err, "record: select capture source")
		}

		hasher, salt := resolveHasher()
		logrus.WithFields(logrus.Fields{
			"source": src.Describe(),
			"port":   recordPortFlag,
			"salt":   salt,
		}).Info("record: starting")

		out, err := os.Create(recordOutFlag)
		if err != nil {
			return errors.Wrapf(err, "record: create %s", recordOutFlag)
		}
		defer out.Close()

		var exit lifecycle.ExitFlag
		stopSignals := lifecycle.WatchSignals(&exit)
		defer stopSignals()
		stopDeadline := lifecycle.WatchDeadline(&exit, recordDeadlineFlag)
		defer stopDeadline()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			<-exit.Done()
			cancel()
		}()

		w := profile.NewWriter(out)
		opts := record.Options{
			Source:        src,
			Port:          recordPortFlag,
			Hasher:        hasher,
			MaxFlowBuffer: recordBufferFlag,
		}
		return record.Run(ctx, opts, w)
	},
}

func resolveHasher() (anonymize.Hasher, uint64) {
	if recordHasSaltFlag {
		return anonymize.NewHasher(recordSaltFlag), recordSaltFlag
	}
	return anonymize.NewHasherFromClock()
}

func init() {
	recordCmd.Flags().StringVar(&recordSourceFlag, "source", "", "interface name, capture file path, or ebpf:<iface> (required)")
	recordCmd.Flags().Uint16Var(&recordPortFlag, "port", 11211, "memcache port to watch")
	recordCmd.Flags().StringVar(&recordOutFlag, "out", "", "profile output path (required)")
	recordCmd.Flags().Uint64Var(&recordSaltFlag, "salt", 0, "explicit anonymization salt; a clock-derived one is used if omitted")
	recordCmd.Flags().IntVar(&recordBufferFlag, "max-flow-buffer", 0, "per-flow reassembly buffer size in bytes (0 selects the default)")
	recordCmd.Flags().DurationVar(&recordDeadlineFlag, "deadline", 0, "stop recording automatically after this duration (0 disables)")
	recordCmd.MarkFlagRequired("source")
	recordCmd.MarkFlagRequired("out")

	recordCmd.PreRun = func(cmd *cobra.Command, args []string) {
		recordHasSaltFlag = cmd.Flags().Changed("salt")
	}
}

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtap/memcap/protocol/memcache"
	"github.com/memtap/memcap/replay"
	"github.com/memtap/memcap/stats"
)

func TestParseModeDefaultsToMeta(t *testing.T) {
	mode, err := parseMode("")
	require.NoError(t, err)
	assert.Equal(t, memcache.Meta, mode)

	mode, err = parseMode("ascii")
	require.NoError(t, err)
	assert.Equal(t, memcache.ASCII, mode)

	_, err = parseMode("binary")
	assert.Error(t, err)
}

func TestParseLoopPolicyModes(t *testing.T) {
	policy, err := parseLoopPolicy("", 1)
	require.NoError(t, err)
	assert.Equal(t, replay.Once(), policy)

	policy, err = parseLoopPolicy("times", 3)
	require.NoError(t, err)
	assert.Equal(t, replay.Times(3), policy)

	_, err = parseLoopPolicy("times", 0)
	assert.Error(t, err, "--times must be positive when --loop-mode=times")

	policy, err = parseLoopPolicy("infinite", 1)
	require.NoError(t, err)
	assert.Equal(t, replay.Infinite(), policy)

	_, err = parseLoopPolicy("bogus", 1)
	assert.Error(t, err)
}

func TestWriteStatsJSONWritesExpectedFields(t *testing.T) {
	agg := stats.NewAggregator()
	report := agg.Snapshot()

	path := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, writeStatsJSON(report, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Contains(t, parsed, "elapsed_secs")
	assert.Contains(t, parsed, "total_operations")
	assert.Contains(t, parsed, "throughput")
}

package stats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtap/memcap/profile"
)

func TestAggregatorMergesLocalSnapshots(t *testing.T) {
	agg := NewAggregator()

	local := NewLocal()
	local.RecordSuccess(profile.Get, 2*time.Millisecond)
	local.RecordSuccess(profile.Get, 4*time.Millisecond)
	local.RecordError("timeout")

	agg.Merge(local.Snapshot())

	report := agg.Snapshot()
	assert.EqualValues(t, 2, report.Successes[profile.Get])
	assert.EqualValues(t, 1, report.Errors["timeout"])
	assert.EqualValues(t, 3, report.TotalOperations)

	snap := report.Operations[profile.Get]
	assert.EqualValues(t, 2, snap.Count)
	assert.Positive(t, snap.P50)
}

func TestLocalSnapshotIsADeltaNotACumulativeCopy(t *testing.T) {
	agg := NewAggregator()
	local := NewLocal()

	local.RecordSuccess(profile.Get, time.Millisecond)
	agg.Merge(local.Snapshot())

	// A second snapshot before any further activity must be empty: the
	// first Snapshot call should have reset local's counters.
	agg.Merge(local.Snapshot())

	local.RecordSuccess(profile.Get, time.Millisecond)
	agg.Merge(local.Snapshot())

	report := agg.Snapshot()
	assert.EqualValues(t, 2, report.Successes[profile.Get])
	assert.EqualValues(t, 2, report.Operations[profile.Get].Count)
}

func TestReportMarshalsExpectedFields(t *testing.T) {
	agg := NewAggregator()
	local := NewLocal()
	local.RecordSuccess(profile.Set, time.Millisecond)
	agg.Merge(local.Snapshot())

	data, err := json.Marshal(agg.Snapshot())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "elapsed_secs")
	assert.Contains(t, decoded, "total_operations")
	assert.Contains(t, decoded, "throughput")
	assert.Contains(t, decoded, "operations")

	ops := decoded["operations"].(map[string]interface{})
	assert.Contains(t, ops, "set")
}

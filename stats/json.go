package stats

import (
	"encoding/json"
)

// operationReport is one command variant's exported latency summary,
// in microseconds (spec.md §4.11).
type operationReport struct {
	Count     int64   `json:"count"`
	MinMicros float64 `json:"min_micros"`
	P50Micros float64 `json:"p50_micros"`
	P95Micros float64 `json:"p95_micros"`
	P99Micros float64 `json:"p99_micros"`
	MaxMicros float64 `json:"max_micros"`
}

// jsonReport is the exported shape of Report for --stats-json output
// (spec.md §4.11, §6).
type jsonReport struct {
	ElapsedSecs      float64                    `json:"elapsed_secs"`
	TotalOperations  uint64                     `json:"total_operations"`
	ThroughputPerSec float64                    `json:"throughput"`
	Operations       map[string]operationReport `json:"operations"`
	Errors           map[string]uint64          `json:"errors"`
}

// MarshalJSON renders r into the field layout spec.md §4.11 specifies.
func (r Report) MarshalJSON() ([]byte, error) {
	ops := make(map[string]operationReport, len(r.Operations))
	for cmd, snap := range r.Operations {
		ops[cmd.String()] = operationReport{
			Count:     snap.Count,
			MinMicros: float64(snap.Min.Microseconds()),
			P50Micros: float64(snap.P50.Microseconds()),
			P95Micros: float64(snap.P95.Microseconds()),
			P99Micros: float64(snap.P99.Microseconds()),
			MaxMicros: float64(snap.Max.Microseconds()),
		}
	}

	return json.Marshal(jsonReport{
		ElapsedSecs:      r.ElapsedSecs,
		TotalOperations:  r.TotalOperations,
		ThroughputPerSec: r.ThroughputPerSec,
		Operations:       ops,
		Errors:           r.Errors,
	})
}

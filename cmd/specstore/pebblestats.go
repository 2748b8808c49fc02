package main

import (
	"github.com/cockroachdb/pebble"

	"github.com/nerrad567/gray-logic-specstore/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn/pebblestore"
)

// pebbleStats samples the engine on every scrape. A closed store reads as 0.
func pebbleStats(s *pebblestore.Store) []metrics.StoreStat {
	sample := func(f func(*pebble.Metrics) float64) func() float64 {
		return func() float64 {
			m := s.Metrics()
			if m == nil {
				return 0
			}
			return f(m)
		}
	}
	return []metrics.StoreStat{
		{
			Name:  "disk_usage_bytes",
			Help:  "Bytes used on disk by the Pebble store",
			Value: sample(func(m *pebble.Metrics) float64 { return float64(m.DiskSpaceUsage()) }),
		},
		{
			Name:  "memtable_bytes",
			Help:  "Bytes allocated to Pebble memtables",
			Value: sample(func(m *pebble.Metrics) float64 { return float64(m.MemTable.Size) }),
		},
		{
			Name:  "read_amplification",
			Help:  "Current Pebble read amplification",
			Value: sample(func(m *pebble.Metrics) float64 { return float64(m.ReadAmp()) }),
		},
		{
			Name:    "flushes_total",
			Help:    "Memtable flushes completed by Pebble",
			Counter: true,
			Value:   sample(func(m *pebble.Metrics) float64 { return float64(m.Flush.Count) }),
		},
		{
			Name:    "compactions_total",
			Help:    "Compactions completed by Pebble",
			Counter: true,
			Value:   sample(func(m *pebble.Metrics) float64 { return float64(m.Compact.Count) }),
		},
	}
}

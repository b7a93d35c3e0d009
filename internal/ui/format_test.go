package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/mirror/internal/stats"
)

func TestFormatRate(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "0 B/s"},
		{-1, "0 B/s"},
		{512, "512 B/s"},
		{1024, "1.00 KB/s"},
		{1.5 * 1024 * 1024, "1.50 MB/s"},
		{100 * 1024, "100 KB/s"},
		{15 * 1024, "15.0 KB/s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRate(tt.input))
		})
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1000000, "1,000,000"},
		{14302, "14,302"},
		{-1000, "-1,000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCount(tt.input))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "30s", FormatDuration(30*time.Second))
	assert.Equal(t, "3m 17s", FormatDuration(3*time.Minute+17*time.Second))
	assert.Equal(t, "1h 02m 03s", FormatDuration(1*time.Hour+2*time.Minute+3*time.Second))
}

func TestCycleSummary(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		got := CycleSummary(3, stats.Snapshot{
			DirsCreated:  1,
			FilesCopied:  2,
			FilesUpdated: 1,
			FilesDeleted: 4,
			Elapsed:      2 * time.Second,
		})
		assert.Equal(t,
			"cycle 3 ✓  created 3  updated 1  deleted 4  failed 0  skipped 0  copied 0 B  time 2s",
			got)
	})

	t.Run("failures and warnings", func(t *testing.T) {
		got := CycleSummary(7, stats.Snapshot{
			Failed:       2,
			ScanWarnings: 5,
			BytesCopied:  2048,
			Elapsed:      time.Second,
		})
		assert.Contains(t, got, "cycle 7 ✗")
		assert.Contains(t, got, "failed 2")
		assert.Contains(t, got, "copied 2.0 KiB")
		assert.Contains(t, got, "avg 2.00 KB/s")
		assert.Contains(t, got, "warnings 5")
	})
}

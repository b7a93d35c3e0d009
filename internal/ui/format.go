package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bamsammich/mirror/internal/stats"
)

// FormatRate formats a bytes-per-second rate as a human-readable string.
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	units := []string{"B/s", "KB/s", "MB/s", "GB/s", "TB/s"}
	val := bytesPerSec
	for _, u := range units {
		if val < 1024 {
			if val < 10 {
				return fmt.Sprintf("%.2f %s", val, u)
			}
			if val < 100 {
				return fmt.Sprintf("%.1f %s", val, u)
			}
			return fmt.Sprintf("%.0f %s", val, u)
		}
		val /= 1024
	}
	return fmt.Sprintf("%.1f PB/s", val)
}

// FormatCount formats an integer with comma separators.
func FormatCount(n int64) string {
	if n < 0 {
		return "-" + FormatCount(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatBytes wraps stats.FormatBytes for UI use.
func FormatBytes(b int64) string {
	return stats.FormatBytes(b)
}

// FormatDuration formats elapsed time concisely. Sub-second durations keep
// millisecond precision since most cycles over a quiet tree finish in well
// under a second.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// CycleSummary builds the one-line console summary of a finished cycle.
// Format: cycle 3 ✓  created 12  updated 1  deleted 4  failed 0  skipped 0  copied 2.1 MiB  time 1s
func CycleSummary(n uint64, snap stats.Snapshot) string {
	icon := "✓"
	if snap.Failed > 0 {
		icon = "✗"
	}

	line := fmt.Sprintf("cycle %d %s  created %s  updated %s  deleted %s  failed %s  skipped %s  copied %s",
		n, icon,
		FormatCount(snap.Created()),
		FormatCount(snap.FilesUpdated),
		FormatCount(snap.Deleted()),
		FormatCount(snap.Failed),
		FormatCount(snap.Skipped),
		FormatBytes(snap.BytesCopied),
	)
	if snap.BytesCopied > 0 && snap.Elapsed.Seconds() > 0 {
		line += "  avg " + FormatRate(float64(snap.BytesCopied)/snap.Elapsed.Seconds())
	}
	if snap.ScanWarnings > 0 {
		line += "  warnings " + FormatCount(snap.ScanWarnings)
	}
	return line + "  time " + FormatDuration(snap.Elapsed)
}

package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks the outcome of one sync cycle using lock-free atomic
// counters.
type Collector struct {
	startTime     time.Time
	entriesSource atomic.Int64
	entriesRepl   atomic.Int64
	scanWarnings  atomic.Int64
	actions       atomic.Int64
	dirsCreated   atomic.Int64
	filesCopied   atomic.Int64
	filesUpdated  atomic.Int64
	filesDeleted  atomic.Int64
	dirsDeleted   atomic.Int64
	failed        atomic.Int64
	skipped       atomic.Int64
	retries       atomic.Int64
	bytesCopied   atomic.Int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	SourceEntries  int64
	ReplicaEntries int64
	ScanWarnings   int64
	Actions        int64
	DirsCreated    int64
	FilesCopied    int64
	FilesUpdated   int64
	FilesDeleted   int64
	DirsDeleted    int64
	Failed         int64
	Skipped        int64
	Retries        int64
	BytesCopied    int64
	Elapsed        time.Duration
}

// SetScanned records how many entries each tree snapshot held.
func (c *Collector) SetScanned(source, replica int64) {
	c.entriesSource.Store(source)
	c.entriesRepl.Store(replica)
}

func (c *Collector) AddScanWarnings(n int64) { c.scanWarnings.Add(n) }
func (c *Collector) AddActions(n int64)      { c.actions.Add(n) }
func (c *Collector) AddDirsCreated(n int64)  { c.dirsCreated.Add(n) }
func (c *Collector) AddFilesCopied(n int64)  { c.filesCopied.Add(n) }
func (c *Collector) AddFilesUpdated(n int64) { c.filesUpdated.Add(n) }
func (c *Collector) AddFilesDeleted(n int64) { c.filesDeleted.Add(n) }
func (c *Collector) AddDirsDeleted(n int64)  { c.dirsDeleted.Add(n) }
func (c *Collector) AddFailed(n int64)       { c.failed.Add(n) }
func (c *Collector) AddSkipped(n int64)      { c.skipped.Add(n) }
func (c *Collector) AddRetries(n int64)      { c.retries.Add(n) }
func (c *Collector) AddBytesCopied(n int64)  { c.bytesCopied.Add(n) }

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		SourceEntries:  c.entriesSource.Load(),
		ReplicaEntries: c.entriesRepl.Load(),
		ScanWarnings:   c.scanWarnings.Load(),
		Actions:        c.actions.Load(),
		DirsCreated:    c.dirsCreated.Load(),
		FilesCopied:    c.filesCopied.Load(),
		FilesUpdated:   c.filesUpdated.Load(),
		FilesDeleted:   c.filesDeleted.Load(),
		DirsDeleted:    c.dirsDeleted.Load(),
		Failed:         c.failed.Load(),
		Skipped:        c.skipped.Load(),
		Retries:        c.retries.Load(),
		BytesCopied:    c.bytesCopied.Load(),
		Elapsed:        c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// Created is the number of directories and files that did not exist in the
// replica before the cycle.
func (s Snapshot) Created() int64 { return s.DirsCreated + s.FilesCopied }

// Deleted is the number of files and directories removed from the replica.
func (s Snapshot) Deleted() int64 { return s.FilesDeleted + s.DirsDeleted }

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"created=%d updated=%d deleted=%d failed=%d skipped=%d bytes=%d warnings=%d",
		s.Created(), s.FilesUpdated, s.Deleted(), s.Failed, s.Skipped,
		s.BytesCopied, s.ScanWarnings,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	_ "modernc.org/sqlite"
)

// DefaultCacheEntries is the capacity of the in-memory digest cache.
const DefaultCacheEntries = 100_000

// DigestKey identifies one content digest. A digest is only reused while the
// file keeps the inode, size, mtime and ctime it had when it was hashed.
type DigestKey struct {
	Tree      string // absolute tree root
	RelPath   string
	Algo      string
	Size      int64
	MtimeNano int64
	Inode     uint64
	CtimeNano int64
}

// stamp is the part of the key that must match for a cached digest to count.
type stamp struct {
	size      int64
	mtimeNano int64
	inode     uint64
	ctimeNano int64
}

func (k DigestKey) stamp() stamp {
	return stamp{size: k.Size, mtimeNano: k.MtimeNano, inode: k.Inode, ctimeNano: k.CtimeNano}
}

func (k DigestKey) id() string {
	return k.Algo + "\x00" + k.Tree + "\x00" + k.RelPath
}

// DigestCache stores content digests across cycles so unchanged files are not
// re-hashed. Implementations must be safe for concurrent use.
type DigestCache interface {
	Get(key DigestKey) (string, bool)
	Put(key DigestKey, digest string)
	Flush() error
	Close() error
}

type cachedDigest struct {
	digest string
	stamp  stamp
}

// MemoryCache is a bounded in-process DigestCache.
type MemoryCache struct {
	lru *lru.Cache
}

// NewMemoryCache creates a MemoryCache holding at most size digests.
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultCacheEntries
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create digest cache: %w", err)
	}
	return &MemoryCache{lru: c}, nil
}

func (m *MemoryCache) Get(key DigestKey) (string, bool) {
	v, ok := m.lru.Get(key.id())
	if !ok {
		return "", false
	}
	cd := v.(cachedDigest)
	if cd.stamp != key.stamp() {
		return "", false
	}
	return cd.digest, true
}

func (m *MemoryCache) Put(key DigestKey, digest string) {
	m.lru.Add(key.id(), cachedDigest{digest: digest, stamp: key.stamp()})
}

func (*MemoryCache) Flush() error { return nil }

func (m *MemoryCache) Close() error {
	m.lru.Purge()
	return nil
}

// SQLiteCache is a DigestCache persisted in a SQLite database so digests
// survive restarts. Writes are buffered and flushed in batches.
type SQLiteCache struct {
	db   *sql.DB
	path string

	mu      sync.Mutex
	pending map[string]pendingDigest
	done    chan struct{}
	stopped bool
}

type pendingDigest struct {
	key    DigestKey
	digest string
}

const flushBatchSize = 100

// OpenSQLiteCache opens (or creates) the digest database at path.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create digest cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open digest cache: %w", err)
	}

	c := &SQLiteCache{
		db:      db,
		path:    path,
		pending: make(map[string]pendingDigest),
		done:    make(chan struct{}),
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS digests (
			algo   TEXT NOT NULL,
			tree   TEXT NOT NULL,
			path   TEXT NOT NULL,
			size   INTEGER NOT NULL,
			mtime  INTEGER NOT NULL,
			inode  INTEGER NOT NULL,
			ctime  INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (algo, tree, path)
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create digest table: %w", err)
	}

	go c.flushLoop()
	return c, nil
}

func (c *SQLiteCache) Get(key DigestKey) (string, bool) {
	c.mu.Lock()
	if p, ok := c.pending[key.id()]; ok {
		c.mu.Unlock()
		if p.key.stamp() == key.stamp() {
			return p.digest, true
		}
		return "", false
	}
	c.mu.Unlock()

	var got stamp
	var inode int64
	var digest string
	err := c.db.QueryRow(
		"SELECT size, mtime, inode, ctime, digest FROM digests WHERE algo = ? AND tree = ? AND path = ?",
		key.Algo, key.Tree, key.RelPath,
	).Scan(&got.size, &got.mtimeNano, &inode, &got.ctimeNano, &digest)
	if err != nil {
		return "", false
	}
	got.inode = uint64(inode) //nolint:gosec // stored from a uint64 below
	if got != key.stamp() {
		return "", false
	}
	return digest, true
}

func (c *SQLiteCache) Put(key DigestKey, digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[key.id()] = pendingDigest{key: key, digest: digest}
	if len(c.pending) >= flushBatchSize {
		_ = c.flushLocked()
	}
}

// Flush writes any buffered digests to the database.
func (c *SQLiteCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *SQLiteCache) flushLocked() error {
	if len(c.pending) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO digests (algo, tree, path, size, mtime, inode, ctime, digest) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range c.pending {
		k := p.key
		if _, err := stmt.Exec(k.Algo, k.Tree, k.RelPath, k.Size, k.MtimeNano, int64(k.Inode), k.CtimeNano, p.digest); err != nil { //nolint:gosec // inode numbers fit in int64
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", k.RelPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	clear(c.pending)
	return nil
}

func (c *SQLiteCache) flushLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			_ = c.flushLocked()
			c.mu.Unlock()
		}
	}
}

// Close flushes pending digests and closes the database.
func (c *SQLiteCache) Close() error {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.done)
	}
	flushErr := c.flushLocked()
	c.mu.Unlock()
	if err := c.db.Close(); err != nil {
		return err
	}
	return flushErr
}

// Path returns the path to the digest database file.
func (c *SQLiteCache) Path() string {
	return c.path
}

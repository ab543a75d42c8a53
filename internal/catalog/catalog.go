// Package catalog records which mail packets have been indexed, so a packet
// that shows up again in the inbound directory is not processed twice.
package catalog

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/blake2b"
)

const (
	metadataBucket = "metadata"
	runsBucket     = "runs"
	versionKey     = "version"
	fileVersion    = 1
)

// Run is the outcome of processing one packet.
type Run struct {
	ID          string    `json:"id"`
	Packet      string    `json:"packet"`
	Fingerprint string    `json:"fingerprint"`
	BBSID       string    `json:"bbsid,omitempty"`
	Index       string    `json:"index,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Written     int       `json:"written"`
	Skipped     int       `json:"skipped"`
	Error       string    `json:"error,omitempty"`
}

// OK reports whether the run completed.
func (r Run) OK() bool { return r.Error == "" }

// Duration returns how long the run took.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Catalog is a bbolt database of runs keyed by packet fingerprint.
type Catalog struct {
	path string
	db   *bolt.DB
}

// Open opens or creates the catalog at path.
func Open(path string) (*Catalog, error) {
	options := *bolt.DefaultOptions
	options.Timeout = 10 * time.Second

	db, err := bolt.Open(path, 0600, &options)
	if err != nil {
		return nil, fmt.Errorf("catalog: cannot open %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return err
		}
		if v := meta.Get([]byte(versionKey)); v != nil && string(v) != fmt.Sprint(fileVersion) {
			return fmt.Errorf("unsupported catalog version %s", v)
		}
		return meta.Put([]byte(versionKey), []byte(fmt.Sprint(fileVersion)))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: init %q: %w", path, err)
	}
	return &Catalog{path: path, db: db}, nil
}

// Path returns the database file name.
func (c *Catalog) Path() string { return c.path }

// Close closes the database.
func (c *Catalog) Close() error { return c.db.Close() }

// Record stores run under its fingerprint, replacing any earlier run of the
// same packet.
func (c *Catalog) Record(run Run) error {
	if run.Fingerprint == "" {
		return fmt.Errorf("catalog: run %s has no fingerprint", run.ID)
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put([]byte(run.Fingerprint), data)
	})
}

// Get returns the run recorded for fingerprint.
func (c *Catalog) Get(fingerprint string) (Run, bool, error) {
	var run Run
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get([]byte(fingerprint))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &run)
	})
	return run, found, err
}

// Seen reports whether a packet with this fingerprint was already indexed
// successfully. Failed runs do not count.
func (c *Catalog) Seen(fingerprint string) (bool, error) {
	run, found, err := c.Get(fingerprint)
	if err != nil {
		return false, err
	}
	return found && run.OK(), nil
}

// List returns every run, oldest first.
func (c *Catalog) List() ([]Run, error) {
	runs := make([]Run, 0)
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("run %x: %w", k, err)
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs, nil
}

// Fingerprint returns the hex BLAKE2b-256 digest of the file at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

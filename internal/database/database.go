// Package database persists submitted magnets, catalog titles and transcode
// session records in a single bbolt file.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	dbFileMode    = 0600
	dbDirMode     = 0755
	defaultDBFile = "debridstream.db"
)

var (
	magnetsBucket  = []byte("magnets")
	titlesBucket   = []byte("titles")
	sessionsBucket = []byte("transcode_sessions")
)

// Magnet is a magnet submitted to the debrid service.
type Magnet struct {
	ID       string    `json:"id"`
	DebridID int64     `json:"debrid_id"`
	Hash     string    `json:"hash"`
	Name     string    `json:"name"`
	AddedAt  time.Time `json:"added_at"`
}

// CatalogTitle caches a catalog lookup by IMDB id.
type CatalogTitle struct {
	IMDBID    string    `json:"imdb_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Year      int       `json:"year"`
	Aliases   []string  `json:"aliases,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRecord is the durable part of a transcode session, kept so output
// directories left by a previous run can be purged.
type SessionRecord struct {
	ID        string    `json:"id"`
	SourceURL string    `json:"source_url"`
	Filename  string    `json:"filename"`
	Dir       string    `json:"dir"`
	Status    string    `json:"status"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Database defines the persistence operations used by the services.
type Database interface {
	StoreMagnet(magnet *Magnet) error
	GetMagnets() ([]Magnet, error)
	GetOldMagnets(olderThan time.Duration) ([]Magnet, error)
	DeleteMagnet(id string) error

	GetCachedTitle(imdbID string) (*CatalogTitle, error)
	StoreTitle(title *CatalogTitle) error

	StoreSession(record *SessionRecord) error
	GetSessions() ([]SessionRecord, error)
	DeleteSession(id string) error

	Close() error
}

type BoltDB struct {
	db *bolt.DB
}

// NewBolt opens (or creates) the store. An empty path uses the default file
// in the working directory.
func NewBolt(dbPath string) (*BoltDB, error) {
	if dbPath == "" {
		dbPath = filepath.Join(".", defaultDBFile)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), dbDirMode); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, dbFileMode, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{magnetsBucket, titlesBucket, sessionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}
	return &BoltDB{db: db}, nil
}

// DefaultPath joins dir with the default database file name.
func DefaultPath(dir string) string {
	return filepath.Join(dir, defaultDBFile)
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

func (b *BoltDB) put(bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

var errNotFound = errors.New("not found")

func (b *BoltDB) get(bucket []byte, key string, v interface{}) error {
	return b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return errNotFound
		}
		return json.Unmarshal(data, v)
	})
}

func (b *BoltDB) remove(bucket []byte, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// StoreMagnet upserts a magnet, stamping AddedAt when unset.
func (b *BoltDB) StoreMagnet(magnet *Magnet) error {
	if magnet.AddedAt.IsZero() {
		magnet.AddedAt = time.Now()
	}
	if err := b.put(magnetsBucket, magnet.ID, magnet); err != nil {
		return fmt.Errorf("failed to store magnet: %w", err)
	}
	return nil
}

// GetMagnets returns every stored magnet, most recent first.
func (b *BoltDB) GetMagnets() ([]Magnet, error) {
	var magnets []Magnet
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(magnetsBucket).ForEach(func(_, v []byte) error {
			var m Magnet
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			magnets = append(magnets, m)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get magnets: %w", err)
	}
	sort.SliceStable(magnets, func(i, j int) bool {
		return magnets[i].AddedAt.After(magnets[j].AddedAt)
	})
	return magnets, nil
}

func (b *BoltDB) GetOldMagnets(olderThan time.Duration) ([]Magnet, error) {
	all, err := b.GetMagnets()
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-olderThan)
	var old []Magnet
	for _, m := range all {
		if m.AddedAt.Before(cutoff) {
			old = append(old, m)
		}
	}
	return old, nil
}

// DeleteMagnet removes a magnet. Missing ids are not an error.
func (b *BoltDB) DeleteMagnet(id string) error {
	if err := b.remove(magnetsBucket, id); err != nil {
		return fmt.Errorf("failed to delete magnet: %w", err)
	}
	return nil
}

// GetCachedTitle returns nil without error when imdbID is unknown.
func (b *BoltDB) GetCachedTitle(imdbID string) (*CatalogTitle, error) {
	var t CatalogTitle
	err := b.get(titlesBucket, imdbID, &t)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached title: %w", err)
	}
	return &t, nil
}

func (b *BoltDB) StoreTitle(title *CatalogTitle) error {
	title.CreatedAt = time.Now()
	if err := b.put(titlesBucket, title.IMDBID, title); err != nil {
		return fmt.Errorf("failed to store title: %w", err)
	}
	return nil
}

func (b *BoltDB) StoreSession(record *SessionRecord) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}
	if err := b.put(sessionsBucket, record.ID, record); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (b *BoltDB) GetSessions() ([]SessionRecord, error) {
	var records []SessionRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(_, v []byte) error {
			var r SessionRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	return records, nil
}

func (b *BoltDB) DeleteSession(id string) error {
	if err := b.remove(sessionsBucket, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

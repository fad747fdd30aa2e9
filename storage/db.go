package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	gethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store backing the custody
// state trie. Both the in-memory and persistent backends share one trie
// database handle so commits made through the trie land in the same store that
// holds the head pointer.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	TrieDB() *triedb.Database
	Close()
}

type backend struct {
	disk   ethdb.Database
	trieDB *triedb.Database
}

func newBackend(disk ethdb.Database) backend {
	return backend{disk: disk, trieDB: triedb.NewDatabase(disk, nil)}
}

func (b backend) Put(key []byte, value []byte) error {
	return b.disk.Put(key, value)
}

func (b backend) Has(key []byte) (bool, error) {
	return b.disk.Has(key)
}

func (b backend) Delete(key []byte) error {
	return b.disk.Delete(key)
}

func (b backend) TrieDB() *triedb.Database {
	return b.trieDB
}

// --- In-Memory DB (for testing) ---

// MemDB keeps the whole store in process memory.
type MemDB struct {
	backend
}

func NewMemDB() *MemDB {
	return &MemDB{backend: newBackend(rawdb.NewMemoryDatabase())}
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	ok, err := db.disk.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return db.disk.Get(key)
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	db.trieDB.Close()
	db.disk.Close()
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	backend
}

const (
	levelDBCacheMB = 64
	levelDBHandles = 256
)

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := gethleveldb.New(path, levelDBCacheMB, levelDBHandles, "scavenger/db/", false)
	if err != nil {
		return nil, fmt.Errorf("storage: open leveldb %s: %w", path, err)
	}
	return &LevelDB{backend: newBackend(rawdb.NewDatabase(kv))}, nil
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.disk.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.trieDB.Close()
	ldb.disk.Close()
}

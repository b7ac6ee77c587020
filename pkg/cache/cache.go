// Package cache provides a local Badger-backed store for expensive
// intermediate results: passage and query embeddings keyed by model and
// content hash, and per-run checkpoints that let long batch runs resume
// after a crash instead of re-answering every question.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const (
	embeddingPrefix  = "emb:"
	checkpointPrefix = "run:"
	keySeparator     = ":"
)

// ErrInvalidKey is returned when a run or question ID contains characters
// that would break key prefix scans.
var ErrInvalidKey = errors.New("invalid cache key: contains separator or control characters")

// Config holds options for opening a cache store.
type Config struct {
	// Path is the directory for the Badger database. Ignored when InMemory
	// is set.
	Path string

	// InMemory opens the store without touching disk. Used by tests and
	// short-lived runs that only want request-scoped reuse.
	InMemory bool

	// EmbeddingTTL bounds how long cached embeddings live. Zero means no
	// expiry.
	EmbeddingTTL time.Duration
}

// Store is a thin wrapper around a Badger database with typed accessors
// for the two things risposta caches.
type Store struct {
	db     *badger.DB
	config Config
}

// NewStore opens (or creates) a cache store.
func NewStore(config Config) (*Store, error) {
	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if config.Path == "" {
			return nil, fmt.Errorf("cache path is required for on-disk stores")
		}
		opts = badger.DefaultOptions(config.Path)
	}
	// Badger's default logger writes straight to stderr; the caller's slog
	// setup should own all output.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	return &Store{db: db, config: config}, nil
}

// validateKeyPart rejects IDs that would break prefix iteration or produce
// ambiguous keys.
func validateKeyPart(part string) error {
	if part == "" {
		return ErrInvalidKey
	}
	if strings.Contains(part, keySeparator) {
		return ErrInvalidKey
	}
	if strings.ContainsRune(part, '\x00') {
		return ErrInvalidKey
	}
	return nil
}

func embeddingKey(model, text string) ([]byte, error) {
	if err := validateKeyPart(model); err != nil {
		return nil, fmt.Errorf("model %q: %w", model, err)
	}
	sum := sha256.Sum256([]byte(text))
	key := embeddingPrefix + model + keySeparator + hex.EncodeToString(sum[:])
	return []byte(key), nil
}

// PutEmbedding stores an embedding vector for the given model and text.
func (s *Store) PutEmbedding(ctx context.Context, model, text string, vector []float32) error {
	key, err := embeddingKey(model, text)
	if err != nil {
		return err
	}

	value := encodeVector(vector)
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, value)
		if s.config.EmbeddingTTL > 0 {
			entry = entry.WithTTL(s.config.EmbeddingTTL)
		}
		return txn.SetEntry(entry)
	})
}

// GetEmbedding fetches a cached embedding. The second return value reports
// whether the vector was present.
func (s *Store) GetEmbedding(ctx context.Context, model, text string) ([]float32, bool, error) {
	key, err := embeddingKey(model, text)
	if err != nil {
		return nil, false, err
	}

	var vector []float32
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vector, err = decodeVector(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached embedding: %w", err)
	}
	return vector, true, nil
}

// encodeVector packs float32s little-endian. Embeddings are hot-path
// payloads read once per passage per run, so the fixed 4-bytes-per-dimension
// layout beats JSON here.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt embedding value: %d bytes", len(data))
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vector, nil
}

// RunGC triggers Badger's value log garbage collection. Safe to call
// periodically from a background goroutine; returns nil when there was
// nothing to rewrite.
func (s *Store) RunGC() error {
	if s.config.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

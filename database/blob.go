// Copyright 2026 Conclave Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

// BlobStore is the Badger-backed store for opaque action payloads. Payloads
// are never interpreted by the approval core, so they bypass the relational
// store entirely.
type BlobStore struct {
	db      *badger.DB
	logger  *slog.Logger
	dataDir string
}

// NewBlobStore creates a Badger blob store. Uses an in-memory database if
// dataDir is empty.
func NewBlobStore(dataDir string, logger *slog.Logger) (*BlobStore, error) {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var badgerOpts badger.Options
	if dataDir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		blobDir := filepath.Join(dataDir, "blob")
		if _, err := os.Stat(blobDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read blob dir: %w", err)
			}
			if err := os.MkdirAll(blobDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create blob dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(blobDir)
	}
	badgerOpts = badgerOpts.WithLogger(newBadgerLogger(logger))
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	return &BlobStore{
		db:      db,
		logger:  logger,
		dataDir: dataDir,
	}, nil
}

// Set stores a value under the given key
func (b *BlobStore) Set(key []byte, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Get retrieves the value for the given key. A missing key returns nil
// without an error.
func (b *BlobStore) Get(key []byte) ([]byte, error) {
	var ret []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		ret, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ret, nil
}

// Delete removes the value for the given key
func (b *BlobStore) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Close cleans up the blob store
func (b *BlobStore) Close() error {
	return b.db.Close()
}

// badgerLogger adapts slog to the badger.Logger interface
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{
		logger: logger.With("component", "blobstore"),
	}
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	// Badger is chatty at info level, keep it at debug
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

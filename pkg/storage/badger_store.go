package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"flora-crawler/pkg/log"
	"flora-crawler/pkg/models"
	"flora-crawler/pkg/utils"
)

const (
	pageKeyPrefix = "page:"     // Prefix for page keys in DB
	ledgerDBDir   = "ledger_db" // Subdirectory name within stateDir for Badger DB files
)

// BadgerStore implements VisitedStore using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	ctx      context.Context
	keyCount atomic.Int64 // Cached key count for O(1) GetVisitedCount
}

// NewBadgerStore opens the page ledger for siteHost under stateDir.
// Without resume any existing ledger for the site is removed first.
func NewBadgerStore(ctx context.Context, stateDir, siteHost string, resume bool, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{
		log: logger,
		ctx: ctx,
	}

	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(siteHost)+"_"+ledgerDBDir)

	if !resume {
		logger.Debugf("Resume disabled, removing existing ledger directory: %s", dbPath)
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Failed to remove existing ledger directory %s: %v", dbPath, err)
		}
	}

	logger.Infof("Opening page ledger at: %s (Resume: %v)", dbPath, resume)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	if resume {
		count, err := store.countKeys()
		if err != nil {
			logger.Warnf("Failed to count existing keys on resume: %v", err)
		} else {
			store.keyCount.Store(int64(count))
			logger.Infof("Loaded existing page count on resume: %d", count)
		}
	}

	return store, nil
}

// countKeys performs a one-time full key scan
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for transaction conflicts
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkPageVisited implements PageStore
func (s *BadgerStore) MarkPageVisited(pageKey string) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("%w: ledger not initialized", utils.ErrDatabase)
	}
	added := false
	key := []byte(pageKeyPrefix + pageKey)

	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			if errSet := txn.SetEntry(badger.NewEntry(key, []byte{})); errSet != nil {
				return errSet
			}
			added = true
			return nil
		}
		return errGet
	})
	if err != nil {
		return false, fmt.Errorf("%w: marking page key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// CheckPageStatus implements PageStore
func (s *BadgerStore) CheckPageStatus(pageKey string) (models.PageStatus, *models.PageDBEntry, error) {
	status := models.PageStatusNotFound
	var entry *models.PageDBEntry
	key := []byte(pageKeyPrefix + pageKey)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting page key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				status = models.PageStatusPending
				return nil
			}
			var decoded models.PageDBEntry
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				s.log.Warnf("Failed to unmarshal PageDBEntry for key '%s': %v. Treating as 'pending'.", string(key), errJSON)
				status = models.PageStatusPending
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})
	if errView != nil {
		s.log.Errorf("DB View error in CheckPageStatus for key '%s': %v", string(key), errView)
		return models.PageStatusDBError, nil, errView
	}
	return status, entry, nil
}

// UpdatePageStatus implements PageStore
func (s *BadgerStore) UpdatePageStatus(pageKey string, entry *models.PageDBEntry) error {
	if s.db == nil {
		return fmt.Errorf("%w: ledger not initialized", utils.ErrDatabase)
	}
	key := []byte(pageKeyPrefix + pageKey)

	entryBytes, errJSON := json.Marshal(entry)
	if errJSON != nil {
		return fmt.Errorf("%w: failed to marshal PageDBEntry JSON for key '%s': %w", utils.ErrParsing, string(key), errJSON)
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})
	if err != nil {
		return fmt.Errorf("%w: failed setting page status for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}

	s.log.Debugf("Updated page status for key '%s' to '%s'", string(key), entry.Status)
	return nil
}

// GetVisitedCount implements StoreAdmin
func (s *BadgerStore) GetVisitedCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC runs BadgerDB's value log garbage collection every interval until ctx ends
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// RequeueIncomplete implements StoreAdmin. Pages with an empty value are
// requeued as leaves since only discovered detail pages are marked without details.
func (s *BadgerStore) RequeueIncomplete(ctx context.Context, push func(models.FrontierEntry)) (int, int, error) {
	requeued, scanErrors := 0, 0
	keyPrefix := []byte(pageKeyPrefix)

	scanErr := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			link := string(item.KeyCopy(nil)[len(keyPrefix):])

			errValue := item.Value(func(val []byte) error {
				if len(val) == 0 {
					push(models.FrontierEntry{Identity: link, Kind: models.KindLeaf})
					requeued++
					return nil
				}
				var entry models.PageDBEntry
				if errJSON := json.Unmarshal(val, &entry); errJSON != nil {
					s.log.Errorf("Resume scan: failed to unmarshal PageDBEntry for '%s': %v. Skipping.", link, errJSON)
					scanErrors++
					return nil
				}
				if entry.Status != models.PageStatusFailure && entry.Status != models.PageStatusPending {
					return nil
				}
				kind := models.KindLeaf
				if entry.Kind == models.KindList.String() {
					kind = models.KindList
				}
				push(models.FrontierEntry{Identity: link, Kind: kind})
				requeued++
				return nil
			})
			if errValue != nil {
				s.log.Errorf("Resume scan: error reading value for '%s': %v", link, errValue)
				scanErrors++
			}
		}
		return nil
	})

	s.log.Infof("Resume scan complete: requeued %d pages, %d errors", requeued, scanErrors)
	return requeued, scanErrors, scanErr
}

// WriteVisitedLog implements StoreAdmin
func (s *BadgerStore) WriteVisitedLog(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	var writeErr error
	written := 0

	iterErr := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		keyPrefix := []byte(pageKeyPrefix)

		for it.Rewind(); it.Valid(); it.Next() {
			if err := s.ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.KeyCopy(nil)
			if !bytes.HasPrefix(key, keyPrefix) {
				s.log.Warnf("Skipping unexpected key in ledger: %s", string(key))
				continue
			}

			status := models.PageStatusPending
			_ = item.Value(func(val []byte) error {
				var entry models.PageDBEntry
				if len(val) > 0 && json.Unmarshal(val, &entry) == nil && entry.Status.IsValid() {
					status = entry.Status
				}
				return nil
			})

			if _, err := fmt.Fprintf(writer, "%s,%s\n", key[len(keyPrefix):], status); err != nil && writeErr == nil {
				writeErr = err
			}
			written++
		}
		return nil
	})

	if flushErr := writer.Flush(); flushErr != nil && writeErr == nil {
		writeErr = flushErr
	}
	if syncErr := file.Sync(); syncErr != nil && writeErr == nil {
		writeErr = syncErr
	}
	if iterErr != nil {
		return iterErr
	}
	if writeErr != nil {
		return fmt.Errorf("%w: writing visited log '%s': %w", utils.ErrFilesystem, filePath, writeErr)
	}

	s.log.Infof("Wrote %d pages to visited log: %s", written, filePath)
	return nil
}

// Close implements StoreAdmin. Closing twice is a no-op.
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing ledger: %w", utils.ErrDatabase, err)
	}
	s.log.Debug("Page ledger closed")
	return nil
}

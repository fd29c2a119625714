package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"

	"linkwatch/internal/model"
)

const (
	reportKey      = "report:current"
	lastRunKey     = "run:last"
	changesListKey = "list:changes"
	runLockKey     = "lock:run"

	// changeFeedSize bounds the rolling change feed in Redis.
	changeFeedSize = 100
)

// HybridStore keeps the report itself in Badger (heavy, immutable payload)
// and run bookkeeping in Redis (last-run summary, rolling change feed, run
// lock). The store is not designed for concurrent writers; the run lock
// provides the required external serialization.
type HybridStore struct {
	rdb *redis.Client
	db  *badger.DB
}

// NewHybridStore connects to Redis and opens the Badger directory.
func NewHybridStore(redisAddr, badgerPath string) (*HybridStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	opts := badger.DefaultOptions(badgerPath)
	opts.Logger = nil // Silence default logger
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &HybridStore{rdb: rdb, db: db}, nil
}

// Close cleans up connections
func (s *HybridStore) Close() {
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// LoadReport fetches the current snapshot from Badger. ErrNoSnapshot means
// this is the first run.
func (s *HybridStore) LoadReport(ctx context.Context) (*model.Report, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(reportKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}

	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &report, nil
}

// SaveReport overwrites the snapshot. JSON keeps nil and empty-string fields
// distinct, which the diff depends on.
func (s *HybridStore) SaveReport(ctx context.Context, report *model.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(reportKey), data)
	})
}

// SaveRun records the run summary and pushes its changes onto the rolling
// feed served by the status API.
func (s *HybridStore) SaveRun(ctx context.Context, info RunInfo, changes []model.Change) error {
	infoData, err := json.Marshal(info)
	if err != nil {
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, lastRunKey, infoData, 0)
	for _, change := range changes {
		data, err := json.Marshal(change)
		if err != nil {
			return err
		}
		pipe.LPush(ctx, changesListKey, data)
	}
	pipe.LTrim(ctx, changesListKey, 0, changeFeedSize-1)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentChanges returns the newest entries of the change feed, newest first.
func (s *HybridStore) RecentChanges(ctx context.Context, limit int) ([]model.Change, error) {
	vals, err := s.rdb.LRange(ctx, changesListKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	var changes []model.Change
	for _, val := range vals {
		var c model.Change
		if err := json.Unmarshal([]byte(val), &c); err == nil {
			changes = append(changes, c)
		}
	}
	return changes, nil
}

// LastRun returns the summary of the most recent completed run, or nil when
// no run has finished yet.
func (s *HybridStore) LastRun(ctx context.Context) (*RunInfo, error) {
	val, err := s.rdb.Get(ctx, lastRunKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var info RunInfo
	if err := json.Unmarshal(val, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// AcquireRunLock takes the run lock or fails with ErrRunInProgress. The TTL
// guards against a crashed run holding the lock forever.
func (s *HybridStore) AcquireRunLock(ctx context.Context, ttl time.Duration) error {
	ok, err := s.rdb.SetNX(ctx, runLockKey, time.Now().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrRunInProgress
	}
	return nil
}

// ReleaseRunLock drops the run lock.
func (s *HybridStore) ReleaseRunLock(ctx context.Context) error {
	return s.rdb.Del(ctx, runLockKey).Err()
}

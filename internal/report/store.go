package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/open-sspm/credwatch/internal/inventory"
	"github.com/open-sspm/credwatch/internal/metrics"
	"github.com/open-sspm/credwatch/internal/storage"
)

const (
	DefaultRetentionDays = 10
	DefaultDataset       = "app-credentials"
)

// ErrNothingToExport is returned by Export when there are no records; no
// empty snapshot is written.
var ErrNothingToExport = errors.New("no credential records to export")

type Store struct {
	// Local is the optional working area the snapshot is written to before
	// upload. Remote is the durable store.
	Local         storage.ObjectStore
	Remote        storage.ObjectStore
	Dataset       string
	RetentionDays int
	Logger        *slog.Logger
}

// PruneResult counts snapshots removed and deletions that failed.
type PruneResult struct {
	Deleted int
	Failed  int
}

func (p PruneResult) add(o PruneResult) PruneResult {
	return PruneResult{Deleted: p.Deleted + o.Deleted, Failed: p.Failed + o.Failed}
}

// Export writes the snapshot for runDate and returns its key.
func (s *Store) Export(ctx context.Context, runDate time.Time, records []inventory.Record) (string, error) {
	if len(records) == 0 {
		return "", ErrNothingToExport
	}
	data, err := Encode(records)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := SnapshotKey(runDate, s.dataset())

	if s.Local != nil {
		if err := s.Local.Put(ctx, key, data); err != nil {
			return "", fmt.Errorf("write local snapshot: %w", err)
		}
	}
	if s.Remote != nil {
		if err := s.Remote.Put(ctx, key, data); err != nil {
			return "", fmt.Errorf("upload snapshot: %w", err)
		}
	}
	s.logger().Info("snapshot exported", "key", key, "records", len(records), "bytes", len(data))
	return key, nil
}

// Cutoff is the oldest day a snapshot may have been modified on and still be
// kept.
func (s *Store) Cutoff(runDate time.Time) time.Time {
	return inventory.DateOf(runDate).AddDate(0, 0, -s.retentionDays())
}

// Prune deletes snapshots of this dataset (see IsSnapshotKey), locally and remotely, whose last
// modification day is strictly before Cutoff. Listing or deleting failures
// are counted and never returned.
func (s *Store) Prune(ctx context.Context, runDate time.Time) PruneResult {
	cutoff := s.Cutoff(runDate)
	var res PruneResult
	if s.Local != nil {
		res = res.add(s.prune(ctx, "local", s.Local, cutoff))
	}
	if s.Remote != nil {
		res = res.add(s.prune(ctx, "remote", s.Remote, cutoff))
	}
	return res
}

func (s *Store) prune(ctx context.Context, location string, store storage.ObjectStore, cutoff time.Time) PruneResult {
	logger := s.logger().With("location", location)
	dataset := s.dataset()

	objs, err := store.List(ctx, "")
	if err != nil {
		logger.Warn("listing snapshots failed", "err", err)
		metrics.SnapshotsPrunedTotal.WithLabelValues(location, "failed").Inc()
		return PruneResult{Failed: 1}
	}

	var res PruneResult
	for _, obj := range objs {
		if !IsSnapshotKey(obj.Key, dataset) {
			continue
		}
		if !inventory.DateOf(obj.LastModified).Before(cutoff) {
			continue
		}
		if err := store.Delete(ctx, obj.Key); err != nil {
			res.Failed++
			metrics.SnapshotsPrunedTotal.WithLabelValues(location, "failed").Inc()
			logger.Warn("deleting expired snapshot failed", "key", obj.Key, "err", err)
			continue
		}
		res.Deleted++
		metrics.SnapshotsPrunedTotal.WithLabelValues(location, "deleted").Inc()
		logger.Info("expired snapshot deleted", "key", obj.Key, "last_modified", obj.LastModified.UTC().Format(DateLayout))
	}
	return res
}

func (s *Store) dataset() string {
	if v := strings.TrimSpace(s.Dataset); v != "" {
		return v
	}
	return DefaultDataset
}

func (s *Store) retentionDays() int {
	if s.RetentionDays > 0 {
		return s.RetentionDays
	}
	return DefaultRetentionDays
}

func (s *Store) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

package bloomfilter

import (
	"context"
	"log/slog"
	"time"
)

// SnapshotStore is the narrow persistence capability the snapshot task
// needs — satisfied by store.Store.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, name string, data []byte) error
}

// Snapshotter runs a single background task that periodically persists the
// Filter's contents and performs a final flush on shutdown (spec §4.3
// "Snapshotting").
type Snapshotter struct {
	filter   *Filter
	store    SnapshotStore
	name     string
	interval time.Duration
	log      *slog.Logger
}

// NewSnapshotter builds a Snapshotter. interval <= 0 disables periodic
// snapshotting (only the final shutdown flush will run).
func NewSnapshotter(filter *Filter, store SnapshotStore, name string, interval time.Duration, log *slog.Logger) *Snapshotter {
	if log == nil {
		log = slog.Default()
	}
	return &Snapshotter{filter: filter, store: store, name: name, interval: interval, log: log}
}

// Run snapshots on the configured interval until ctx is cancelled, then
// attempts one final snapshot before returning. Snapshotting is
// best-effort: a failure is logged, never fatal — a crashed process simply
// rebuilds on next startup (spec §4.3).
func (s *Snapshotter) Run(ctx context.Context) {
	if s.interval <= 0 {
		<-ctx.Done()
		s.flushFinal()
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flushFinal()
			return
		case <-ticker.C:
			s.snapshotOnce(ctx)
		}
	}
}

func (s *Snapshotter) snapshotOnce(ctx context.Context) {
	data, err := s.filter.Snapshot()
	if err != nil {
		s.log.Error("bloom snapshot encode failed", "error", err)
		return
	}
	if err := s.store.SaveSnapshot(ctx, s.name, data); err != nil {
		s.log.Error("bloom snapshot persist failed", "error", err)
	}
}

// flushFinal runs one last bounded-timeout snapshot attempt, detached from
// the (already-cancelled) caller context.
func (s *Snapshotter) flushFinal() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.snapshotOnce(ctx)
}

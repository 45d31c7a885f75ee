// Session wiring: store, engine, logger and metrics for one command.
package cli

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stowage/internal/engine"
	"github.com/mesh-intelligence/stowage/internal/logging"
	"github.com/mesh-intelligence/stowage/internal/metrics"
	"github.com/mesh-intelligence/stowage/internal/sqlite"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

// session is the state one command works with. The engine is restored from
// the store on open; save writes it back together with the mission date.
type session struct {
	ctx     context.Context
	flags   *rootFlags
	cfg     resolvedConfig
	log     logging.Logger
	store   *sqlite.Backend
	engine  *engine.Engine
	metrics *metrics.Collector
	date    types.Date
}

// openSession attaches the store and restores the engine. The caller must
// defer close.
func openSession(cmd *cobra.Command, flags *rootFlags) (*session, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}

	ctx, requestID := logging.EnsureRequestID(cmd.Context())
	log := logging.New(logging.Config{
		Level:  cfg.file.LogLevel,
		Format: cfg.file.LogFormat,
		Output: cmd.ErrOrStderr(),
	}).With(logging.String("command", cmd.CommandPath()), logging.String("request_id", requestID))

	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, sysError("create metrics: %w", err)
	}

	store := sqlite.NewBackend()
	if err := store.Attach(cfg.storeConfig()); err != nil {
		return nil, sysError("attach store: %w", err)
	}

	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		store.Detach()
		return nil, sysError("load state: %w", err)
	}

	s := &session{
		ctx:     ctx,
		flags:   flags,
		cfg:     cfg,
		log:     log,
		store:   store,
		metrics: collector,
		date:    snap.Date,
	}
	if s.date.IsZero() {
		start, _ := cfg.file.startDate()
		s.date = start
	}
	if s.date.IsZero() {
		s.date = types.NewDate(time.Now().UTC().Truncate(24 * time.Hour))
	}

	// Audit entries without an explicit timestamp are stamped in mission time.
	s.engine = engine.New(
		engine.WithLogger(log),
		engine.WithRecorder(collector),
		engine.WithAuditLog(store),
		engine.WithRearrangement(cfg.file.Rearrangement),
		engine.WithClock(func() time.Time { return s.date.Time }),
	)
	if err := s.engine.Restore(ctx, snap); err != nil {
		store.Detach()
		return nil, sysError("restore state from %s: %w", cfg.dataDir, err)
	}
	log.Debug(ctx, "session opened",
		logging.String("data_dir", cfg.dataDir),
		logging.Int("items", len(snap.Items)),
		logging.Int("containers", len(snap.Containers)),
		logging.String("date", s.date.String()))
	return s, nil
}

// save persists the engine state and the mission date.
func (s *session) save() error {
	snap := s.engine.Snapshot(s.ctx)
	snap.Date = s.date
	if err := s.store.SaveSnapshot(s.ctx, snap); err != nil {
		return sysError("save state: %w", err)
	}
	return nil
}

func (s *session) close() {
	if err := s.store.Detach(); err != nil {
		s.log.Warn(s.ctx, "detach store failed", logging.Err(err))
	}
}

// timestamp returns the mission date as the timestamp of a user action
// unless the flag value overrides it.
func (s *session) timestamp(flag string) (types.Date, error) {
	if flag == "" {
		return s.date, nil
	}
	return types.ParseDate(flag)
}

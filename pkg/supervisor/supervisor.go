package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dodancs/bit-hih-docker/pkg/config"
	"github.com/dodancs/bit-hih-docker/pkg/honeypot"
	"github.com/dodancs/bit-hih-docker/pkg/log"
	"github.com/dodancs/bit-hih-docker/pkg/runtime"
)

// Supervisor is the process-level owner of every Connection Manager. It
// never touches a session or a container directly; everything below the
// per-honeypot Manager is that Manager's own business.
type Supervisor struct {
	cfg     *config.GlobalConfig
	rt      runtime.Runtime
	metrics honeypot.Metrics
	logger  zerolog.Logger

	forcePull bool

	// managers is in registration order: construction order and drain
	// order must match.
	managers []*honeypot.Manager
}

// New builds a Supervisor from a validated config and a connected runtime
// adapter. Over-subscription (honeypots_num > max_connections) is already
// rejected by config.GlobalConfig.Validate before this is ever called.
func New(cfg *config.GlobalConfig, rt runtime.Runtime, metrics honeypot.Metrics, forcePull bool) *Supervisor {
	return &Supervisor{
		cfg:       cfg,
		rt:        rt,
		metrics:   metrics,
		logger:    log.Logger,
		forcePull: forcePull,
	}
}

// distinctImages returns the set of distinct image references across every
// configured honeypot, so PrePullImages checks or pulls each one once
// before any listener starts.
func distinctImages(specs []config.HoneypotSpec) []string {
	seen := make(map[string]struct{}, len(specs))
	var out []string
	for _, s := range specs {
		if _, ok := seen[s.Image]; ok {
			continue
		}
		seen[s.Image] = struct{}{}
		out = append(out, s.Image)
	}
	return out
}

// PrePullImages ensures every distinct configured image is present locally,
// pulling it if missing or if forcePull was requested.
func (s *Supervisor) PrePullImages(ctx context.Context) error {
	for _, ref := range distinctImages(s.cfg.Honeypots) {
		present, err := s.rt.HasImage(ctx, ref)
		if err != nil {
			return fmt.Errorf("checking image %s: %w", ref, err)
		}
		if present && !s.forcePull {
			continue
		}
		s.logger.Info().Str("image", ref).Msg("pulling image")
		if err := s.rt.PullImage(ctx, ref); err != nil {
			return fmt.Errorf("pulling image %s: %w", ref, err)
		}
	}
	return nil
}

// backlog computes floor(max_connections / honeypots_num), the per-listener
// backlog every Connection Manager binds with. cfg.Validate already
// guarantees honeypots_num <= max_connections so this is always >= 1.
func backlog(cfg *config.GlobalConfig) int {
	return cfg.MaxConnections / cfg.HoneypotsNum()
}

// Start constructs and starts one Connection Manager per configured
// honeypot, concurrently, failing atomically if any fails to bind.
func (s *Supervisor) Start(ctx context.Context) error {
	backlogN := backlog(s.cfg)

	managers := make([]*honeypot.Manager, len(s.cfg.Honeypots))
	for i, spec := range s.cfg.Honeypots {
		managers[i] = honeypot.NewManager(spec, s.cfg.Bind, backlogN, s.rt, s.metrics)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, mgr := range managers {
		mgr := mgr
		g.Go(func() error {
			return mgr.Start(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		// Best-effort: kill whatever did start, since a partial fleet
		// left running would leak listeners.
		for _, mgr := range managers {
			mgr.Kill(context.Background())
		}
		return err
	}

	s.managers = managers
	return nil
}

// Run blocks until SIGINT or SIGTERM, then drains every manager in
// registration order and returns.
func (s *Supervisor) Run(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		s.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
	}

	s.Shutdown(context.Background())
}

// Shutdown kills every manager in registration order.
func (s *Supervisor) Shutdown(ctx context.Context) {
	for _, mgr := range s.managers {
		mgr.Kill(ctx)
	}
}

package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
)

// Checker periodically runs Check for every active DOMAIN target that is due.
type Checker struct {
	monitor     *Monitor
	targets     storage.TargetStore
	tick        time.Duration
	concurrency int
	now         func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewChecker(m *Monitor, targets storage.TargetStore, tick time.Duration, concurrency int) *Checker {
	if tick <= 0 {
		tick = 30 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Checker{
		monitor:     m,
		targets:     targets,
		tick:        tick,
		concurrency: concurrency,
		now:         time.Now,
		done:        make(chan struct{}),
	}
}

func (c *Checker) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.loop(ctx)
	slog.Info("Uptime checker started", "tick", c.tick, "concurrency", c.concurrency)
}

// Stop cancels in-flight checks and waits for the loop to exit.
func (c *Checker) Stop() {
	c.once.Do(func() {
		if c.cancel == nil {
			close(c.done)
			return
		}
		c.cancel()
		<-c.done
		slog.Info("Uptime checker stopped")
	})
}

func (c *Checker) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	c.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			c.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce checks all due targets and returns how many were checked.
// Per-target failures are logged and never stop the batch.
func (c *Checker) RunOnce(ctx context.Context) int {
	targets, err := c.targets.ListTargets(ctx, storage.TargetFilter{Type: models.SourceDomain, ActiveOnly: true})
	if err != nil {
		slog.Error("Failed to list targets", "error", err)
		return 0
	}

	now := c.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	checked := 0
	for i := range targets {
		t := targets[i]
		cfg, err := t.DecodeConfig()
		if err != nil {
			slog.Warn("Skipping target with invalid config", "target_id", t.ID, "error", err)
			continue
		}
		if !t.Due(now, cfg.(models.DomainConfig).Interval()) {
			continue
		}
		checked++
		g.Go(func() error {
			c.checkOne(gctx, &t)
			return nil
		})
	}
	_ = g.Wait()
	return checked
}

func (c *Checker) checkOne(ctx context.Context, t *models.DataSource) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Uptime check panicked", "target_id", t.ID, "panic", r)
		}
	}()
	if _, err := c.monitor.Check(ctx, t); err != nil {
		slog.Error("Uptime check failed", "target_id", t.ID, "client_id", t.ClientID, "error", err)
	}
}

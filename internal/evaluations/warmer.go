package evaluations

import (
	"context"
	"log/slog"
	"time"
)

// Warmer periodically refreshes the top levels of the hierarchy in the cache
// so first page loads do not wait on the warehouse
type Warmer struct {
	service  *Service
	interval time.Duration
}

// NewWarmer creates a new cache warmer
func NewWarmer(service *Service, interval time.Duration) *Warmer {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &Warmer{
		service:  service,
		interval: interval,
	}
}

// Start begins the warmer in a goroutine
func (w *Warmer) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Warmer) run(ctx context.Context) {
	slog.Info("cache warmer started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start
	w.warm(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cache warmer stopped")
			return
		case <-ticker.C:
			w.warm(ctx)
		}
	}
}

func (w *Warmer) warm(ctx context.Context) {
	start := time.Now()

	languages, err := w.service.Refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("cache warm failed", "error", err)
		return
	}

	slog.Info("cache warmed",
		"languages", languages,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

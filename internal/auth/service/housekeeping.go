package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chapatuventa/marketplace/internal/auth/store"
)

// Housekeeping periodically purges terminal rows: consumed or long-expired
// otp sessions and refresh tokens past their retention window. Expiry
// decisions themselves are always made at use time, never here.
type Housekeeping struct {
	Store    store.Store
	Interval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

func (h *Housekeeping) Start() {
	if h.Interval <= 0 {
		h.Interval = time.Hour
	}
	h.stop = make(chan struct{})
	h.wg.Add(1)
	go h.run()
}

func (h *Housekeeping) Stop() {
	if h.stop == nil {
		return
	}
	close(h.stop)
	h.wg.Wait()
}

func (h *Housekeeping) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.cleanup()
		}
	}
}

func (h *Housekeeping) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := h.Store.OtpSessions().DeleteExpiredOtpSessions(ctx); err != nil {
		slog.Error("failed to purge otp sessions", "error", err)
	}
	if err := h.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx); err != nil {
		slog.Error("failed to purge refresh tokens", "error", err)
	}
}

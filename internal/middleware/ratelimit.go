package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/persona-chat-go/internal/config"
	"github.com/persona-chat-go/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter admits or denies requests per client identity.
type RateLimiter interface {
	Admit(clientID string, now time.Time) Decision
	Size() int
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// Limit is zero when rate limiting is disabled.
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long a denied client should wait, in whole seconds
// and never less than one.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now).Truncate(time.Second)
	if wait < time.Second {
		return time.Second
	}
	return wait
}

// FixedWindowLimiter counts requests per client in fixed windows. The table
// lives in a go-cache instance whose items expire when their window resets;
// every read-check-write runs under mu.
type FixedWindowLimiter struct {
	enabled     bool
	window      time.Duration
	maxRequests int
	maxEntries  int

	mu      sync.Mutex
	windows *cache.Cache

	// Eager sweeps of an oversized table run at most once per sweepEvery.
	sweepEvery time.Duration
	lastSweep  time.Time

	denyLog     *rate.Sometimes
	oversizeLog *rate.Sometimes
	logger      *logrus.Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.RateLimitConfig, logger *logrus.Logger) *FixedWindowLimiter {
	sweepEvery := cfg.CleanupInterval
	if sweepEvery <= 0 {
		sweepEvery = cfg.Window
	}

	return &FixedWindowLimiter{
		enabled:     cfg.Enabled,
		window:      cfg.Window,
		maxRequests: cfg.MaxRequests,
		maxEntries:  cfg.MaxEntries,
		windows:     cache.New(cache.NoExpiration, 0),
		sweepEvery:  sweepEvery,
		denyLog:     &rate.Sometimes{Interval: time.Second},
		oversizeLog: &rate.Sometimes{Interval: time.Minute},
		logger:      logger,
	}
}

// Admit records a request from clientID at now and reports whether it may
// proceed. Denied requests still count against the window.
func (l *FixedWindowLimiter) Admit(clientID string, now time.Time) Decision {
	if !l.enabled {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var w *models.ClientWindow
	if val, found := l.windows.Get(clientID); found {
		w = val.(*models.ClientWindow)
	}

	if w == nil || w.Expired(now) {
		w = &models.ClientWindow{Count: 1, WindowResetAt: now.Add(l.window)}
		l.windows.Set(clientID, w, w.WindowResetAt.Sub(now))
		l.enforceMaxEntries(now)
		return l.decision(w, true)
	}

	w.Count++
	if w.Count > l.maxRequests {
		l.denyLog.Do(func() {
			l.logger.WithFields(logrus.Fields{
				"client_id": clientID,
				"count":     w.Count,
				"reset_at":  w.WindowResetAt,
			}).Warn("Rate limit exceeded")
		})
		return l.decision(w, false)
	}

	return l.decision(w, true)
}

func (l *FixedWindowLimiter) decision(w *models.ClientWindow, allowed bool) Decision {
	remaining := l.maxRequests - w.Count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Limit:     l.maxRequests,
		Remaining: remaining,
		ResetAt:   w.WindowResetAt,
	}
}

// enforceMaxEntries sweeps expired windows once the table grows past its
// bound, at most once per sweepEvery. Live windows are never evicted: dropping
// one would hand its client a fresh budget. Caller holds mu.
func (l *FixedWindowLimiter) enforceMaxEntries(now time.Time) {
	if l.maxEntries <= 0 || l.windows.ItemCount() <= l.maxEntries {
		return
	}
	if !l.lastSweep.IsZero() && now.Sub(l.lastSweep) < l.sweepEvery {
		return
	}
	l.lastSweep = now

	removed := l.sweepLocked(now)
	l.oversizeLog.Do(func() {
		l.logger.WithFields(logrus.Fields{
			"removed": removed,
			"entries": l.windows.ItemCount(),
			"max":     l.maxEntries,
		}).Warn("Rate table size exceeded threshold, swept expired windows")
	})
}

// Sweep drops every window that has expired at now and returns how many were
// removed.
func (l *FixedWindowLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sweepLocked(now)
}

func (l *FixedWindowLimiter) sweepLocked(now time.Time) int {
	before := l.windows.ItemCount()
	l.windows.DeleteExpired()

	for key, item := range l.windows.Items() {
		if item.Object.(*models.ClientWindow).Expired(now) {
			l.windows.Delete(key)
		}
	}

	return before - l.windows.ItemCount()
}

// Size returns the number of tracked client windows.
func (l *FixedWindowLimiter) Size() int {
	return l.windows.ItemCount()
}

// StartJanitor sweeps expired windows every interval until ctx is done.
func (l *FixedWindowLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	if !l.enabled || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := l.Sweep(time.Now()); removed > 0 {
					l.logger.WithField("removed", removed).Debug("Swept expired rate windows")
				}
			}
		}
	}()
}

package gate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateGate throttles outbound alerts: a cooldown between alerts for the
// same ticker, and a token bucket per channel sized to the hourly cap.
// State is memory-only; a restart resets throttling.
type RateGate struct {
	mu        sync.Mutex
	cooldown  time.Duration
	hourlyCap int
	lastAlert map[string]time.Time
	pending   map[string]string
	reserved  map[string]int
	limiters  map[string]*rate.Limiter
}

// NewRateGate builds a gate with the given per-ticker cooldown and
// per-channel hourly cap.
func NewRateGate(cooldown time.Duration, hourlyCap int) *RateGate {
	if hourlyCap <= 0 {
		hourlyCap = 1
	}
	return &RateGate{
		cooldown:  cooldown,
		hourlyCap: hourlyCap,
		lastAlert: make(map[string]time.Time),
		pending:   make(map[string]string),
		reserved:  make(map[string]int),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Allow reports whether an alert for ticker may go out on channel now,
// and reserves the slot. A reservation holds the ticker and one channel
// token until Commit or Release, so a second alert for the same ticker
// in the same batch is rejected and a batch can never reserve past the
// hourly cap. Call Commit after the send succeeds, Release if it fails.
func (g *RateGate) Allow(now time.Time, ticker, channel string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.pending[ticker]; held {
		return false
	}
	if last, ok := g.lastAlert[ticker]; ok && now.Sub(last) < g.cooldown {
		return false
	}
	if g.limiter(channel).TokensAt(now) < float64(1+g.reserved[channel]) {
		return false
	}

	g.pending[ticker] = channel
	g.reserved[channel]++
	return true
}

// Commit finalizes a delivered alert: arms the ticker cooldown and
// converts the reservation into a consumed channel token.
func (g *RateGate) Commit(now time.Time, ticker, channel string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.release(ticker)
	g.lastAlert[ticker] = now
	g.limiter(channel).AllowN(now, 1)
}

// Release drops a reservation after a failed send, leaving the cooldown
// unarmed and the token unconsumed so the alert stays eligible.
func (g *RateGate) Release(ticker string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(ticker)
}

func (g *RateGate) release(ticker string) {
	channel, ok := g.pending[ticker]
	if !ok {
		return
	}
	delete(g.pending, ticker)
	if g.reserved[channel] > 0 {
		g.reserved[channel]--
	}
}

func (g *RateGate) limiter(channel string) *rate.Limiter {
	lim, ok := g.limiters[channel]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Hour/time.Duration(g.hourlyCap)), g.hourlyCap)
		g.limiters[channel] = lim
	}
	return lim
}

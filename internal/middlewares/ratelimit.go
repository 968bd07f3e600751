package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimit throttles inbound requests using a token bucket per key,
// refilled continuously at requestsPerMinute and capped at burstSize. The
// key comes from keyExtractor; AuthHeaderKeyExtractor keys by the
// bearer-stripped Authorization token (or source IP without one), not by
// the peer account FromPeer later resolves.
type RateLimit struct {
	requestsPerMinute float64
	burstSize         int
	keyExtractor      func(*http.Request) string
	log               *logrus.Entry

	mu      sync.Mutex
	buckets map[string]*bucket

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimit builds a RateLimit middleware. A requestsPerMinute of 0
// disables throttling entirely (every request passes through), matching
// the sink's "dummy" convention elsewhere in the ingress stack.
func NewRateLimit(requestsPerMinute int, burstSize int, keyExtractor func(*http.Request) string, log *logrus.Entry) *RateLimit {
	if burstSize <= 0 {
		burstSize = requestsPerMinute
	}
	rl := &RateLimit{
		requestsPerMinute: float64(requestsPerMinute),
		burstSize:         burstSize,
		keyExtractor:      keyExtractor,
		log:               log,
		buckets:           make(map[string]*bucket),
		stopCleanup:       make(chan struct{}),
	}
	if requestsPerMinute > 0 {
		rl.cleanupTicker = time.NewTicker(5 * time.Minute)
		go rl.cleanupLoop()
	}
	return rl
}

func (rl *RateLimit) cleanupLoop() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimit) cleanup() {
	cutoff := time.Now().Add(-10 * time.Minute)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		b.mu.Lock()
		stale := b.lastRefill.Before(cutoff)
		b.mu.Unlock()
		if stale {
			delete(rl.buckets, key)
		}
	}
}

// Stop halts the bucket-eviction goroutine; idempotent.
func (rl *RateLimit) Stop() {
	rl.stopOnce.Do(func() {
		if rl.cleanupTicker != nil {
			rl.cleanupTicker.Stop()
			close(rl.stopCleanup)
		}
	})
}

func (rl *RateLimit) getOrCreate(key string) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.burstSize), lastRefill: time.Now()}
		rl.buckets[key] = b
	}
	return b
}

func (rl *RateLimit) allow(key string) (bool, time.Duration) {
	b := rl.getOrCreate(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	b.tokens += elapsed.Minutes() * rl.requestsPerMinute
	if b.tokens > float64(rl.burstSize) {
		b.tokens = float64(rl.burstSize)
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	retryAfter := time.Duration(float64(time.Minute) / rl.requestsPerMinute)
	return false, retryAfter
}

func (rl *RateLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.requestsPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := rl.keyExtractor(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		allowed, retryAfter := rl.allow(key)
		if !allowed {
			rl.log.WithFields(logrus.Fields{"key": key, "retry_after": retryAfter}).Warn("rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Too Many Requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AuthHeaderKeyExtractor keys the bucket off the bearer-stripped
// Authorization header, the same token AuthToken checks membership of, so
// each peer gets its own independent budget. Falls back to the remote IP
// when no Authorization header is present.
func AuthHeaderKeyExtractor(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth != "" {
		return "token:" + strings.TrimPrefix(auth, bearerPrefix)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/metrics"
	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/pipeline"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	rateLimitedError  = "Demasiadas solicitudes. Por favor, espera 15 minutos."
	maxTrackedClients = 10_000
)

const rateLimitedReply = "💙 Has enviado muchos mensajes seguidos. Si necesitas ayuda inmediata llama al " + pipeline.CrisisPhone + "."

// rateLimiter allows limit requests per client IP in fixed windows. Each
// window gets a bucket of limit tokens that never refills; the next request
// after the window ends starts a new one.
type rateLimiter struct {
	clock  clockwork.Clock
	limit  int
	window time.Duration

	mu      sync.Mutex
	clients *ttlcache.Cache[string, *clientWindow]
}

type clientWindow struct {
	start time.Time
	lim   *rate.Limiter
}

func newRateLimiter(clock clockwork.Clock, limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		clock:  clock,
		limit:  limit,
		window: window,
		clients: ttlcache.New(
			ttlcache.WithTTL[string, *clientWindow](window),
			ttlcache.WithCapacity[string, *clientWindow](maxTrackedClients),
			ttlcache.WithDisableTouchOnHit[string, *clientWindow](),
		),
	}
}

func (l *rateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	var cw *clientWindow
	if item := l.clients.Get(client); item != nil {
		cw = item.Value()
	}
	if cw == nil || !now.Before(cw.start.Add(l.window)) {
		cw = &clientWindow{start: now, lim: rate.NewLimiter(0, l.limit)}
		l.clients.Set(client, cw, ttlcache.DefaultTTL)
	}
	return cw.lim.AllowN(now, 1)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			metrics.HTTPRateLimitedTotal.Inc()
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error: rateLimitedError,
				Reply: rateLimitedReply,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

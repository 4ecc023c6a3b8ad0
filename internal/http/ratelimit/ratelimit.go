package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key (client IP, login name). Buckets
// idle for longer than the configured period are dropped.
type Limiter struct {
	mu             sync.Mutex
	buckets        *cache.Cache
	rate           rate.Limit
	burst          int
	trustedProxies []*net.IPNet
}

// New creates a keyed limiter allowing r events per second with bursts of b.
// trustedProxies lists CIDR ranges or IPs whose X-Forwarded-For headers are
// honored by Middleware; an empty list trusts every peer.
func New(r rate.Limit, b int, idle time.Duration, trustedProxies []string) *Limiter {
	l := &Limiter{
		buckets: cache.New(idle, idle),
		rate:    r,
		burst:   b,
	}
	for _, entry := range trustedProxies {
		if ipnet := parseTrustedProxy(entry); ipnet != nil {
			l.trustedProxies = append(l.trustedProxies, ipnet)
		}
	}
	return l
}

func parseTrustedProxy(entry string) *net.IPNet {
	if _, ipnet, err := net.ParseCIDR(entry); err == nil {
		return ipnet
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil
	}
	bits := 128
	if ip.To4() != nil {
		ip = ip.To4()
		bits = 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
	}
	// re-set to push the idle expiry forward
	l.buckets.SetDefault(key, lim)
	return lim.(*rate.Limiter)
}

// Allow consumes a token for key, reporting false when none is available.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// Exhausted reports whether key has no token left, without consuming one.
func (l *Limiter) Exhausted(key string) bool {
	return l.bucket(key).Tokens() < 1
}

// AllowAddr applies Allow to the IP of a network peer.
func (l *Limiter) AllowAddr(addr net.Addr) bool {
	if addr == nil {
		return true
	}
	ip := parseIP(addr.String())
	if ip == nil {
		return l.Allow(addr.String())
	}
	return l.Allow(ip.String())
}

// Middleware creates HTTP middleware for rate limiting
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(l.clientIP(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) clientIP(r *http.Request) string {
	remoteIP := parseIP(r.RemoteAddr)
	if remoteIP == nil {
		return r.RemoteAddr
	}

	if len(l.trustedProxies) > 0 && !l.trusted(remoteIP) {
		return remoteIP.String()
	}

	// leftmost X-Forwarded-For entry is the original client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
	}
	if parsed := net.ParseIP(r.Header.Get("X-Real-IP")); parsed != nil {
		return parsed.String()
	}
	return remoteIP.String()
}

func (l *Limiter) trusted(ip net.IP) bool {
	for _, ipnet := range l.trustedProxies {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

func parseIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}

package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"

	"garagebook/internal/config"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const clientKeyUnknown = "unknown"

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	limiters sync.Map
	cfg      config.APIRateLimitConfig
	clients  *clientResolver
}

func newRateLimiter(cfg config.APIRateLimitConfig, clients *clientResolver) *rateLimiter {
	return &rateLimiter{cfg: cfg, clients: clients}
}

func (l *rateLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if l.cfg.RPS > 0 && !l.getLimiter(l.clients.clientIP(r)).Allow() {
			writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		next(w, r)
	}
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}

// clientResolver derives the caller IP used as the rate limit and login
// attempt key. X-Forwarded-For is read only when the direct peer is a trusted
// proxy, and then the right-most hop that is not itself trusted wins.
type clientResolver struct {
	trusted []netip.Prefix
}

func newClientResolver(proxies []string, logger *zerolog.Logger) *clientResolver {
	c := &clientResolver{}
	for _, raw := range proxies {
		prefix, err := parseProxy(raw)
		if err != nil {
			if logger != nil {
				logger.Warn().Err(err).Str("proxy", raw).Msg("Ignoring invalid trusted proxy")
			}
			continue
		}
		c.trusted = append(c.trusted, prefix)
	}
	return c
}

// parseProxy accepts a single address or a CIDR range.
func parseProxy(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (c *clientResolver) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (c *clientResolver) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return clientKeyUnknown
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !c.isTrusted(peer) {
		return host
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}

	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(hops[i])
		if err != nil {
			// anything left of a garbled hop is unverifiable
			return host
		}
		if !c.isTrusted(addr) {
			return addr.Unmap().String()
		}
	}
	if len(hops) > 0 {
		return hops[0]
	}
	return host
}

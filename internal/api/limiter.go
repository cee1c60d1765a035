package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
)

// gridLimiter caps concurrent exposure-grid computations per client IP and
// globally. Grid requests are the one expensive operation in the service;
// without a cap a scrubbing client can pile up abandoned computations.
type gridLimiter struct {
	mu       sync.Mutex
	inflight map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newGridLimiter(maxPerIP int) *gridLimiter {
	return &gridLimiter{
		inflight: make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxPerIP * 8,
	}
}

// acquire attempts to register a computation for the given IP.
// Returns false if the IP or global limit has been reached.
func (l *gridLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal {
		return false
	}
	if l.inflight[ip] >= l.maxPerIP {
		return false
	}

	l.inflight[ip]++
	l.total++
	return true
}

// release decrements the computation count for the given IP.
func (l *gridLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inflight[ip]--
	l.total--
	if l.inflight[ip] <= 0 {
		delete(l.inflight, ip)
	}
}

// clientIP extracts the client IP address from the request. When
// trustProxy is true, X-Forwarded-For (first entry) and X-Real-IP headers
// are checked before falling back to RemoteAddr. Only enable trustProxy
// behind a trusted reverse proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if i := strings.IndexByte(xff, ','); i > 0 {
				xff = xff[:i]
			}
			if ip := strings.TrimSpace(xff); ip != "" {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

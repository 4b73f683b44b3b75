package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
)

// IPBlockList is a set of client addresses that get a 403.
type IPBlockList struct {
	mu      sync.RWMutex
	blocked map[string]bool
}

func NewIPBlockList(ips ...string) *IPBlockList {
	b := &IPBlockList{blocked: make(map[string]bool)}
	for _, ip := range ips {
		if ip = strings.TrimSpace(ip); ip != "" {
			b.blocked[ip] = true
		}
	}
	return b
}

func (b *IPBlockList) IsBlocked(ip string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.blocked[ip]
}

func (b *IPBlockList) Add(ip string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[ip] = true
	slog.Warn("ip blocked", "ip", ip)
}

func (b *IPBlockList) Remove(ip string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blocked, ip)
	slog.Info("ip unblocked", "ip", ip)
}

func (b *IPBlockList) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.blocked)
}

// Middleware rejects requests whose RemoteAddr host is blocked. Forwarded
// headers are not trusted.
func (b *IPBlockList) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if b.IsBlocked(ip) {
			slog.Warn("request blocked", "ip", ip, "path", r.URL.Path)
			WriteJSON(w, http.StatusForbidden, map[string]interface{}{
				"success": false,
				"error":   map[string]interface{}{"kind": "forbidden", "message": "access denied"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
)

// TrustedRealIP resolves the client address of each upload or status call
// and stores it in the request context, where the rate limiter and request
// log read it. X-Real-IP, then the first X-Forwarded-For hop, replace the
// connection address only when the connection comes from one of the
// trusted proxies. Entries may be CIDRs or bare addresses.
func TrustedRealIP(trustedProxies []string) func(http.Handler) http.Handler {
	proxies := parseProxies(trustedProxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, ok := connAddr(r.RemoteAddr)
			if ok && fromProxy(client, proxies) {
				if fwd, ok := forwardedAddr(r.Header); ok {
					client = fwd
					r.RemoteAddr = fwd.String()
				}
			}

			ip := r.RemoteAddr
			if client.IsValid() {
				ip = client.String()
			}
			next.ServeHTTP(w, r.WithContext(core.ContextWithClientIP(r.Context(), ip)))
		})
	}
}

func parseProxies(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy", "entry", e, "error", err)
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

// connAddr parses "host:port" or a bare address.
func connAddr(remote string) (netip.Addr, bool) {
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func forwardedAddr(h http.Header) (netip.Addr, bool) {
	if v := h.Get("X-Real-IP"); v != "" {
		return parseAddr(v)
	}
	if v := h.Get("X-Forwarded-For"); v != "" {
		first, _, _ := strings.Cut(v, ",")
		return parseAddr(first)
	}
	return netip.Addr{}, false
}

func parseAddr(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func fromProxy(addr netip.Addr, proxies []netip.Prefix) bool {
	for _, p := range proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

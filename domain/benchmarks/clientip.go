package benchmarks

import (
	"net"
	"net/http"
	"strings"
)

// submitterIP returns the first X-Forwarded-For entry when present,
// otherwise the host part of the connection's remote address.
func submitterIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

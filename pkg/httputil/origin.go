package httputil

import (
	"net"
	"net/http"
	"strings"
)

// OriginKey identifies the network origin of r for banning. It expects
// RemoteAddr to be rewritten by chi's RealIP middleware when the service
// runs behind a proxy.
func OriginKey(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

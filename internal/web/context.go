package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/automationdb/internal/core"
)

// WithRequestMetadata adds client IP and User-Agent to ctx so sync runs can
// log who started them.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // already resolved by TrustedRealIP
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ctx = core.ContextWithClientIP(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

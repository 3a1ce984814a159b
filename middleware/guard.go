// Package middleware adapts HTTP semantics to engine calls: the guard reads
// the Authorization header, verifies the access token, stamps the request
// context with the caller's IP, user agent, and verified identity, and
// rejects everything else with 401. It makes no authorization decisions of
// its own.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/caseflow-io/authengine"
)

type identityContextKey struct{}

// IdentityFromContext returns the verified identity the guard attached to
// the request.
func IdentityFromContext(ctx context.Context) (*authengine.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*authengine.Identity)
	return id, ok
}

// Guard wraps a handler with bearer-token verification. Requests without a
// valid access token are rejected with a uniform 401; no detail about which
// check failed leaks to the client.
func Guard(engine *authengine.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := Annotate(r.Context(), r)
			identity, err := engine.VerifyAccess(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole layers a role check on top of [Guard]'s identity. Mount inside
// a guarded chain.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[identity.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Annotate copies the request's client IP, user agent, and request id onto
// the context so engine operations stamp them on audit records and session
// rows. Unguarded endpoints (login, refresh, registration) should call this
// before invoking the engine.
func Annotate(ctx context.Context, r *http.Request) context.Context {
	ctx = authengine.WithClientIP(ctx, clientIP(r))
	ctx = authengine.WithUserAgent(ctx, r.UserAgent())
	if id := r.Header.Get("X-Request-Id"); id != "" {
		ctx = authengine.WithRequestID(ctx, id)
	}
	return ctx
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	return token, token != ""
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

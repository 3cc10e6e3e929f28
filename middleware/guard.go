package middleware

import (
	"context"
	"net/http"
	"strings"

	authkit "github.com/craftdex/authkit"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the verified result the guard stored for this
// request. ok is false on requests that did not pass through [Guard].
func AuthResultFromContext(ctx context.Context) (*authkit.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authkit.AuthResult)
	return res, ok
}

// Guard returns middleware that authenticates the request's bearer token and,
// when roles are given, requires every one of them.
//
// All rejections look identical to the client: 401 with an "unauthorized"
// body. Malformed, expired, revoked, missing role, backend down, the response
// never says which, so the endpoint cannot be used as a token oracle. Metrics
// and the audit trail keep the specific reason.
func Guard(engine *authkit.Engine, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				reject(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w)
				return
			}

			res, err := engine.VerifyAccess(r.Context(), token)
			if err != nil {
				reject(w)
				return
			}

			if err := engine.Authorize(res, roles...); err != nil {
				reject(w)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter) {
	http.Error(w, authkit.ErrUnauthorized.Error(), http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

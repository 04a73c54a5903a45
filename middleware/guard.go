package middleware

import (
	"context"
	"net/http"
	"strings"

	authcore "github.com/halverth/authcore"
	"github.com/halverth/authcore/scope"
)

type introspectionContextKey struct{}

func IntrospectionFromContext(ctx context.Context) (*authcore.IntrospectionResult, bool) {
	res, ok := ctx.Value(introspectionContextKey{}).(*authcore.IntrospectionResult)
	return res, ok
}

func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
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

			res, err := engine.Introspect(r.Context(), token)
			if err != nil || res == nil || !res.Active {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), introspectionContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope wraps [Guard] and additionally rejects tokens whose grant does
// not include the named scope.
func RequireScope(engine *authcore.Engine, name string) func(http.Handler) http.Handler {
	guard := Guard(engine)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := IntrospectionFromContext(r.Context())
			if !ok || !scope.IsSubset(name, res.Scope) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
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

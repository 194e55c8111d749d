package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// extensionSchemes are origins of the companion browser extension. Their
// host part is a per-install ID, so they are matched by prefix.
var extensionSchemes = []string{"chrome-extension://", "moz-extension://"}

// CORS returns middleware that answers cross-origin requests from the given
// origins and from browser extensions. "*" in allowed matches any origin.
//
// Every OPTIONS request ends here with 204, preflight or not, so a bare
// OPTIONS never reaches the router and turns into a 405.
func CORS(allowed []string) func(http.Handler) http.Handler {
	allow := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		allow[strings.TrimRight(o, "/")] = true
	}

	c := cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			return allowOrigin(allow, origin)
		},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "Authorization"},
		AllowCredentials:     true,
		MaxAge:               86400,
		OptionsSuccessStatus: http.StatusNoContent,
	})

	return func(next http.Handler) http.Handler {
		return c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func allowOrigin(allow map[string]bool, origin string) bool {
	if allow["*"] || allow[origin] {
		return true
	}
	for _, scheme := range extensionSchemes {
		if strings.HasPrefix(origin, scheme) {
			return true
		}
	}
	return false
}

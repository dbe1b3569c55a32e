package tinysync

import (
	"net/http"

	"github.com/go-chi/cors"
)

// AllowedHeaders are the request headers browsers may send cross-origin
var AllowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// anyOrigin accepts requests from every origin
const anyOrigin = "*"

// CORS negotiates cross-origin access for methods. Every OPTIONS request,
// preflight or not, is answered with a plain "ok" and never reaches the
// handler.
func CORS(methods ...string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(methods)+1)
	allowed = append(allowed, methods...)
	allowed = append(allowed, http.MethodOptions)

	negotiate := cors.Handler(cors.Options{
		AllowedOrigins:     []string{anyOrigin},
		AllowedMethods:     allowed,
		AllowedHeaders:     AllowedHeaders,
		OptionsPassthrough: true,
	})

	return func(next http.Handler) http.Handler {
		return negotiate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

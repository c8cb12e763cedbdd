package database

import (
	"net/http"
)

// WithScopeMiddleware puts a pool-backed scope in the request context so
// repositories called while handling the request can run statements.
func WithScopeMiddleware(db *DB) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := SetScope(r.Context(), &Scope{Conn: db.Pool})
			next(w, r.WithContext(ctx))
		}
	}
}

package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type contextKey string

const (
	// ScopeKey is the context key for the request's database scope.
	ScopeKey contextKey = "dbScope"
)

// ErrNoScope is returned by repositories called without a database scope in context.
var ErrNoScope = errors.New("no database scope in context")

// Querier is the statement surface shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Scope is what repositories run their statements on. Outside a transaction it
// is the pool, so every statement borrows a connection only for its own duration.
type Scope struct {
	Conn Querier
	tx   pgx.Tx
}

// InTx reports whether the scope is a transaction.
func (s *Scope) InTx() bool {
	return s.tx != nil
}

// GetScope retrieves the database scope from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok && scope != nil && scope.Conn != nil
}

// SetScope stores the database scope in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// QuerierFrom returns the scope's Querier or ErrNoScope.
func QuerierFrom(ctx context.Context) (Querier, error) {
	scope, ok := GetScope(ctx)
	if !ok {
		return nil, ErrNoScope
	}
	return scope.Conn, nil
}

// Transactor runs work with a database scope in context. Services depend on this
// interface so tests can substitute it.
type Transactor interface {
	// WithScope runs fn with a non-transactional scope, reusing one already in ctx.
	WithScope(ctx context.Context, fn func(ctx context.Context) error) error
	// WithTx runs fn in a transaction committed when fn returns nil. A transaction
	// already in ctx is joined rather than nested.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrNotFound is returned by single-row lookups when nothing matched.
var ErrNotFound = errors.New("db: not found")

// Querier is the common part of *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo is everything the services need from the relational store.
// Store is the Postgres implementation; memrepo is the in-memory one used in tests.
type Repo interface {
	UserRepo
	GroupRepo
	MemberRepo
	PostRepo
	FeedbackRepo

	// InTx runs fn atomically. Nested calls join the outer transaction.
	InTx(ctx context.Context, fn func(tx Repo) error) error
	// LockGroup takes a row lock on the group until the surrounding transaction ends.
	LockGroup(ctx context.Context, groupID string) error
}

// Store is the Postgres-backed Repo.
type Store struct {
	db *sql.DB
	q  Querier
}

var _ Repo = (*Store)(nil)

func NewStore(database *sql.DB) *Store {
	return &Store{db: database, q: database}
}

func (s *Store) InTx(ctx context.Context, fn func(tx Repo) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) LockGroup(ctx context.Context, groupID string) error {
	var id string
	err := s.q.QueryRowContext(ctx, `SELECT id FROM groups WHERE id = $1 FOR UPDATE`, groupID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// IsUniqueViolation reports a unique constraint failure from either driver
// (pgx in production, lib/pq in the test container helper).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Page is a LIMIT/OFFSET pair. Limit <= 0 means no limit.
type Page struct {
	Limit  int
	Offset int
}

// where accumulates AND-ed conditions with positional args.
// expr uses %[1]d for the placeholder index so one arg can appear several times.
type where struct {
	parts []string
	args  []any
}

func (w *where) add(expr string, v any) {
	w.args = append(w.args, v)
	w.parts = append(w.parts, fmt.Sprintf(expr, len(w.args)))
}

func (w *where) raw(expr string) {
	w.parts = append(w.parts, expr)
}

func (w *where) String() string {
	if len(w.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.parts, " AND ")
}

func (w *where) page(p Page) string {
	out := ""
	if p.Limit > 0 {
		w.args = append(w.args, p.Limit)
		out += fmt.Sprintf(" LIMIT $%d", len(w.args))
	}
	if p.Offset > 0 {
		w.args = append(w.args, p.Offset)
		out += fmt.Sprintf(" OFFSET $%d", len(w.args))
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns user input into a substring ILIKE pattern.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func count(ctx context.Context, q Querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// validID filters out ids Postgres would reject as malformed uuids;
// such lookups simply find nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

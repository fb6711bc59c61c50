package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/model"
)

// pqInvalidTextRepresentation is the PostgreSQL error code raised when a
// value cannot be cast to the column type, e.g. a bad UUID literal.
const pqInvalidTextRepresentation = "22P02"

const personsTable = "persons"

var personColumns = []string{
	"id",
	"name",
	"number",
	"revision",
	"created_at",
	"updated_at",
}

// Dialect selects placeholder style and driver-specific error mapping.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// insertionOrder returns the column that grows with every insert. Postgres
// uses an identity column; SQLite hands out rowids above the current maximum.
func (d Dialect) insertionOrder() string {
	if d == DialectPostgres {
		return "seq"
	}
	return "rowid"
}

// SQLStore implements the Store interface on database/sql. The same
// queries serve PostgreSQL and SQLite; only the placeholder format differs.
type SQLStore struct {
	db      *sql.DB
	sb      sq.StatementBuilderType
	dialect Dialect
	now     func() time.Time
}

var _ Store = (*SQLStore)(nil)

// SQLOption configures a SQLStore.
type SQLOption func(*SQLStore)

// WithClock overrides the time source for created_at and updated_at.
func WithClock(now func() time.Time) SQLOption {
	return func(s *SQLStore) {
		s.now = now
	}
}

// NewSQLStore wraps db for the given dialect. PostgreSQL uses $1-style
// placeholders, SQLite uses ?.
func NewSQLStore(db *sql.DB, dialect Dialect, opts ...SQLOption) *SQLStore {
	var format sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		format = sq.Dollar
	}
	s := &SQLStore{
		db:      db,
		sb:      sq.StatementBuilder.PlaceholderFormat(format),
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying handle for migrations.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect reports which backend the store talks to.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// ---------------------------------------------------------------------------
// Ping / Close
// ---------------------------------------------------------------------------

// Ping verifies that the database connection is alive.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// List / Count
// ---------------------------------------------------------------------------

// ListPersons retrieves every record in insertion order.
func (s *SQLStore) ListPersons(ctx context.Context) ([]model.Person, error) {
	query, args, err := s.sb.
		Select(personColumns...).
		From(personsTable).
		OrderBy(s.dialect.insertionOrder() + " ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing list query: %w", err)
	}
	defer rows.Close()

	persons := []model.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return persons, nil
}

// CountPersons returns the number of stored records.
func (s *SQLStore) CountPersons(ctx context.Context) (int, error) {
	query, args, err := s.sb.Select("COUNT(*)").From(personsTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("executing count query: %w", err)
	}
	return total, nil
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

// GetPerson retrieves a single record by id.
func (s *SQLStore) GetPerson(ctx context.Context, id string) (model.Person, error) {
	key, err := ParseID(id)
	if err != nil {
		return model.Person{}, err
	}

	query, args, err := s.sb.
		Select(personColumns...).
		From(personsTable).
		Where(sq.Eq{"id": key}).
		ToSql()
	if err != nil {
		return model.Person{}, fmt.Errorf("building get query: %w", err)
	}

	p, err := scanPerson(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return model.Person{}, s.mapError(id, err)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

// CreatePerson validates p and inserts it with a fresh id.
func (s *SQLStore) CreatePerson(ctx context.Context, p model.Person) (model.Person, error) {
	if err := p.Validate(); err != nil {
		return model.Person{}, err
	}

	now := s.now()
	p.ID = newID()
	p.Revision = 0
	p.CreatedAt = now
	p.UpdatedAt = now

	query, args, err := s.sb.
		Insert(personsTable).
		Columns(personColumns...).
		Values(p.ID, p.Name, p.Number, p.Revision, p.CreatedAt, p.UpdatedAt).
		ToSql()
	if err != nil {
		return model.Person{}, fmt.Errorf("building insert query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return model.Person{}, fmt.Errorf("executing insert query: %w", err)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

// UpdatePerson validates p, replaces name and number, bumps the revision
// and returns the row as written by the same statement.
func (s *SQLStore) UpdatePerson(ctx context.Context, p model.Person) (model.Person, error) {
	key, err := ParseID(p.ID)
	if err != nil {
		return model.Person{}, err
	}
	if err := p.Validate(); err != nil {
		return model.Person{}, err
	}

	query, args, err := s.sb.
		Update(personsTable).
		Set("name", p.Name).
		Set("number", p.Number).
		Set("revision", sq.Expr("revision + 1")).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": key}).
		Suffix("RETURNING " + strings.Join(personColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Person{}, fmt.Errorf("building update query: %w", err)
	}

	updated, err := scanPerson(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return model.Person{}, s.mapError(p.ID, err)
	}
	return updated, nil
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

// DeletePerson removes a record by id.
func (s *SQLStore) DeletePerson(ctx context.Context, id string) error {
	key, err := ParseID(id)
	if err != nil {
		return err
	}

	query, args, err := s.sb.
		Delete(personsTable).
		Where(sq.Eq{"id": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return s.mapError(id, fmt.Errorf("executing delete query: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (model.Person, error) {
	var p model.Person
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Number,
		&p.Revision,
		dbTime{&p.CreatedAt},
		dbTime{&p.UpdatedAt},
	)
	return p, err
}

// sqliteTimeLayouts are the text forms modernc.org/sqlite writes for
// time.Time values.
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// dbTime scans a timestamp the driver may return either as time.Time or
// as text. SQLite reports text when it cannot see the declared column
// type, as in RETURNING clauses.
type dbTime struct {
	t *time.Time
}

func (d dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d.t = v
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		*d.t = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (d dbTime) parse(text string) error {
	text = strings.TrimSpace(text)
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			*d.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("parsing timestamp %q", text)
}

// mapError translates driver errors into store sentinels.
func (s *SQLStore) mapError(id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if s.dialect == DialectPostgres && errors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRepresentation {
		return &MalformedIDError{ID: id, Err: err}
	}
	return err
}

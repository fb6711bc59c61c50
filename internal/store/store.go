// Package store defines the persistence contract for phonebook records and
// its adapters (PostgreSQL, SQLite, in-memory).
//
// Every adapter generates ids, validates records on the write path and
// reports failures as one of the error kinds below, so handlers map them
// to responses the same way regardless of backend.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/model"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	// ErrNotFound is returned when no record matches a well-formed id.
	ErrNotFound = errors.New("person not found")

	// ErrMalformedID is returned when an id does not parse as a record key.
	ErrMalformedID = errors.New("malformed id")
)

// MalformedIDError carries the rejected id. It matches ErrMalformedID.
type MalformedIDError struct {
	ID  string
	Err error
}

func (e *MalformedIDError) Error() string {
	return fmt.Sprintf("malformed id %q: %v", e.ID, e.Err)
}

func (e *MalformedIDError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedID.
func (e *MalformedIDError) Is(target error) bool {
	return target == ErrMalformedID
}

// ---------------------------------------------------------------------------
// Error classification
// ---------------------------------------------------------------------------

// Kind classifies a store failure.
type Kind uint8

const (
	// KindNone means the operation succeeded.
	KindNone Kind = iota
	// KindNotFound means the id was well formed but matched nothing.
	KindNotFound
	// KindMalformedID means the id failed to parse.
	KindMalformedID
	// KindValidation means the record failed a field rule on write.
	KindValidation
	// KindUnexpected covers everything else (connectivity, driver errors).
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindMalformedID:
		return "malformed_id"
	case KindValidation:
		return "validation"
	default:
		return "unexpected"
	}
}

// KindOf classifies err. It is the single place handlers rely on to tell
// store failures apart.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMalformedID):
		return KindMalformedID
	case errors.Is(err, model.ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindUnexpected
	}
}

// ---------------------------------------------------------------------------
// Store interface
// ---------------------------------------------------------------------------

// Store defines the data access methods for phonebook records. Every
// method takes the request context and returns model types.
type Store interface {
	// Ping checks backend connectivity. Used by the readiness probe.
	Ping(ctx context.Context) error

	// ListPersons returns every record in insertion order.
	ListPersons(ctx context.Context) ([]model.Person, error)

	// CountPersons returns the number of stored records.
	CountPersons(ctx context.Context) (int, error)

	// GetPerson returns the record with the given id.
	GetPerson(ctx context.Context, id string) (model.Person, error)

	// CreatePerson validates and inserts p, assigning a fresh id.
	CreatePerson(ctx context.Context, p model.Person) (model.Person, error)

	// UpdatePerson validates p and replaces name and number of the record
	// with p.ID, returning the record as it is after the update.
	UpdatePerson(ctx context.Context, p model.Person) (model.Person, error)

	// DeletePerson removes the record with the given id.
	DeletePerson(ctx context.Context, id string) error

	// Close releases the backend handle.
	Close() error
}

// ---------------------------------------------------------------------------
// Helpers shared by adapters
// ---------------------------------------------------------------------------

// ParseID normalizes a client-supplied id to its canonical form.
func ParseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", &MalformedIDError{ID: id, Err: err}
	}
	return parsed.String(), nil
}

func newID() string {
	return uuid.Must(uuid.NewRandom()).String()
}

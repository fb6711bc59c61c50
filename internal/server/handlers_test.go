package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/events"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/model"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/store"
	"github.com/kshg9/FSO-part11-ci-phonebook/pkg/types"
)

const knownID = "6f9619ff-8b86-d011-b42d-00c04fc964ff"

func decodePerson(t *testing.T, body []byte) types.Person {
	t.Helper()
	var p types.Person
	require.NoError(t, json.Unmarshal(body, &p), "body: %s", string(body))
	return p
}

// ---------------------------------------------------------------------------
// Mock-backed handler tests
// ---------------------------------------------------------------------------

func TestHandleListPersons(t *testing.T) {
	now := time.Now()
	srv := newTestServer(&mockStore{listFn: func(context.Context) ([]model.Person, error) {
		return []model.Person{
			{ID: knownID, Name: "Arto Hellas", Number: "040-123456", Revision: 4, CreatedAt: now, UpdatedAt: now},
		}, nil
	}})

	w := doRequest(t, srv.Router(), http.MethodGet, "/api/persons", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `[{"id":"`+knownID+`","name":"Arto Hellas","number":"040-123456"}]`, w.Body.String())
}

func TestHandleListPersons_EmptyIsArray(t *testing.T) {
	srv := newTestServer(&mockStore{listFn: func(context.Context) ([]model.Person, error) {
		return nil, nil
	}})

	w := doRequest(t, srv.Router(), http.MethodGet, "/api/persons", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHandleListPersons_StoreFailure(t *testing.T) {
	srv := newTestServer(&mockStore{listFn: func(context.Context) ([]model.Person, error) {
		return nil, errors.New("connection reset")
	}})

	w := doRequest(t, srv.Router(), http.MethodGet, "/api/persons", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decodeError(t, w))
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestHandleCreatePerson_PresenceChecks(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"number":"123456"}`},
		{"missing number", `{"name":"Grace Hopper"}`},
		{"empty name", `{"name":"","number":"040-123456"}`},
		{"empty object", `{}`},
		{"no body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			srv := newTestServer(&mockStore{createFn: func(context.Context, model.Person) (model.Person, error) {
				called = true
				return model.Person{}, nil
			}})

			w := doRequest(t, srv.Router(), http.MethodPost, "/api/persons", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Content missing", decodeError(t, w))
			assert.False(t, called, "store must not be called")
		})
	}
}

func TestHandleCreatePerson_MalformedBody(t *testing.T) {
	srv := newTestServer(&mockStore{})

	for _, body := range []string{`{"name":`, `[]`, `{"name":42,"number":"040-123456"}`} {
		w := doRequest(t, srv.Router(), http.MethodPost, "/api/persons", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "malformed request body", decodeError(t, w))
	}
}

func TestHandleCreatePerson_Success(t *testing.T) {
	pub := &recordingPublisher{}
	var got model.Person
	srv := newTestServer(&mockStore{createFn: func(_ context.Context, p model.Person) (model.Person, error) {
		got = p
		p.ID = knownID
		return p, nil
	}}, WithPublisher(pub))

	w := doRequest(t, srv.Router(), http.MethodPost, "/api/persons", `{"name":"Ada Lovelace","number":"123-456789"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+knownID+`","name":"Ada Lovelace","number":"123-456789"}`, w.Body.String())
	assert.Equal(t, "Ada Lovelace", got.Name)
	assert.Equal(t, "123-456789", got.Number)
	assert.Equal(t, []string{events.TypePersonCreated}, pub.types())
}

func TestHandleCreatePerson_ValidationFailure(t *testing.T) {
	pub := &recordingPublisher{}
	srv := newTestServer(&mockStore{createFn: func(_ context.Context, p model.Person) (model.Person, error) {
		return model.Person{}, fmt.Errorf("create: %w", p.Validate())
	}}, WithPublisher(pub))

	w := doRequest(t, srv.Router(), http.MethodPost, "/api/persons", `{"name":"Al","number":"040-123456"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t,
		"Person validation failed: name: Path `name` (`Al`) is shorter than the minimum allowed length (3).",
		decodeError(t, w))
	assert.Empty(t, pub.types())
}

func TestHandleCreatePerson_PublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	srv := newTestServer(&mockStore{createFn: func(_ context.Context, p model.Person) (model.Person, error) {
		p.ID = knownID
		return p, nil
	}}, WithPublisher(pub))

	w := doRequest(t, srv.Router(), http.MethodPost, "/api/persons", `{"name":"Ada Lovelace","number":"123-456789"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, pub.types(), 1)
}

func TestHandleGetPerson(t *testing.T) {
	tests := []struct {
		name       string
		getErr     error
		wantStatus int
		wantBody   string
	}{
		{name: "found", wantStatus: http.StatusOK},
		{name: "not found", getErr: store.ErrNotFound, wantStatus: http.StatusNotFound, wantBody: ""},
		{
			name:       "malformed id",
			getErr:     &store.MalformedIDError{ID: "x", Err: errors.New("invalid UUID length: 1")},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"malformed id"}`,
		},
		{
			name:       "unexpected",
			getErr:     errors.New("timeout"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			srv := newTestServer(&mockStore{getFn: func(_ context.Context, id string) (model.Person, error) {
				gotID = id
				if tt.getErr != nil {
					return model.Person{}, tt.getErr
				}
				return model.Person{ID: id, Name: "Arto Hellas", Number: "040-123456"}, nil
			}})

			w := doRequest(t, srv.Router(), http.MethodGet, "/api/persons/"+knownID, "")
			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, knownID, gotID)

			switch {
			case tt.wantStatus == http.StatusOK:
				assert.Equal(t, "Arto Hellas", decodePerson(t, w.Body.Bytes()).Name)
			case tt.wantBody == "":
				assert.Empty(t, w.Body.String())
			default:
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestHandleUpdatePerson(t *testing.T) {
	tests := []struct {
		name       string
		updateErr  error
		wantStatus int
		wantError  string
	}{
		{name: "updated", wantStatus: http.StatusOK},
		{name: "not found", updateErr: store.ErrNotFound, wantStatus: http.StatusNotFound, wantError: "Unable to update"},
		{
			name:       "malformed id",
			updateErr:  &store.MalformedIDError{ID: "x", Err: errors.New("bad")},
			wantStatus: http.StatusBadRequest,
			wantError:  "malformed id",
		},
		{
			name:       "validation",
			updateErr:  model.Person{Name: "Arto Hellas"}.Validate(),
			wantStatus: http.StatusBadRequest,
			wantError:  "Person validation failed: number: Path `number` is required.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			var got model.Person
			srv := newTestServer(&mockStore{updateFn: func(_ context.Context, p model.Person) (model.Person, error) {
				got = p
				if tt.updateErr != nil {
					return model.Person{}, tt.updateErr
				}
				p.Revision = 1
				return p, nil
			}}, WithPublisher(pub))

			w := doRequest(t, srv.Router(), http.MethodPut, "/api/persons/"+knownID,
				`{"name":"Arto Hellas","number":"12-3456789"}`)
			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, model.Person{ID: knownID, Name: "Arto Hellas", Number: "12-3456789"}, got)

			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"id":"`+knownID+`","name":"Arto Hellas","number":"12-3456789"}`, w.Body.String())
				assert.Equal(t, []string{events.TypePersonUpdated}, pub.types())
				return
			}
			assert.Equal(t, tt.wantError, decodeError(t, w))
			assert.Empty(t, pub.types())
		})
	}
}

func TestHandleUpdatePerson_PassesMissingFieldsToStore(t *testing.T) {
	var got model.Person
	srv := newTestServer(&mockStore{updateFn: func(_ context.Context, p model.Person) (model.Person, error) {
		got = p
		return model.Person{}, p.Validate()
	}})

	w := doRequest(t, srv.Router(), http.MethodPut, "/api/persons/"+knownID, `{"number":"040-123456"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, got.Name)
	assert.Equal(t, "Person validation failed: name: Path `name` is required.", decodeError(t, w))
}

func TestHandleUpdatePerson_MalformedBody(t *testing.T) {
	called := false
	srv := newTestServer(&mockStore{updateFn: func(_ context.Context, p model.Person) (model.Person, error) {
		called = true
		return p, nil
	}})

	w := doRequest(t, srv.Router(), http.MethodPut, "/api/persons/"+knownID, `not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "malformed request body", decodeError(t, w))
	assert.False(t, called)
}

func TestHandleDeletePerson(t *testing.T) {
	tests := []struct {
		name       string
		deleteErr  error
		wantStatus int
		wantError  string
	}{
		{name: "deleted", wantStatus: http.StatusNoContent},
		{name: "not found", deleteErr: store.ErrNotFound, wantStatus: http.StatusNotFound, wantError: "Person not found"},
		{
			name:       "malformed id",
			deleteErr:  &store.MalformedIDError{ID: "x", Err: errors.New("bad")},
			wantStatus: http.StatusBadRequest,
			wantError:  "malformed id",
		},
		{name: "unexpected", deleteErr: errors.New("disk full"), wantStatus: http.StatusInternalServerError, wantError: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			srv := newTestServer(&mockStore{deleteFn: func(context.Context, string) error {
				return tt.deleteErr
			}}, WithPublisher(pub))

			w := doRequest(t, srv.Router(), http.MethodDelete, "/api/persons/"+strings.ToUpper(knownID), "")
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusNoContent {
				assert.Empty(t, w.Body.String())
				require.Len(t, pub.events, 1)
				assert.Equal(t, events.TypePersonDeleted, pub.events[0].Type)
				assert.Equal(t, knownID, pub.events[0].Subject)
				return
			}
			assert.Equal(t, tt.wantError, decodeError(t, w))
			assert.Empty(t, pub.types())
		})
	}
}

func TestHandleInfo(t *testing.T) {
	loc := time.FixedZone("EET", 2*60*60)
	fixed := time.Date(2024, time.March, 5, 14, 3, 9, 0, loc)
	srv := newTestServer(&mockStore{countFn: func(context.Context) (int, error) {
		return 4, nil
	}}, WithClock(func() time.Time { return fixed }))

	w := doRequest(t, srv.Router(), http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<p>Phonebook has info for 4 people</p>")
	assert.Contains(t, w.Body.String(), "<p>Tue Mar 05 2024 14:03:09 GMT+0200 (EET)</p>")
}

func TestHandleInfo_StoreFailure(t *testing.T) {
	srv := newTestServer(&mockStore{countFn: func(context.Context) (int, error) {
		return 0, errors.New("db down")
	}})

	w := doRequest(t, srv.Router(), http.MethodGet, "/info", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

// ---------------------------------------------------------------------------
// End-to-end scenarios on the memory store
// ---------------------------------------------------------------------------

func newMemoryServer(t *testing.T, seed ...model.Person) (*Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	for _, p := range seed {
		_, err := st.CreatePerson(context.Background(), p)
		require.NoError(t, err)
	}
	return New(st, testConfig(), "v1", "abc", "now", WithLogger(zerolog.Nop())), st
}

func listPersons(t *testing.T, srv *Server) []types.Person {
	t.Helper()
	w := doRequest(t, srv.Router(), http.MethodGet, "/api/persons", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out []types.Person
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

var arto = model.Person{Name: "Arto Hellas", Number: "040-123456"}

func TestScenario_ListSeeded(t *testing.T) {
	srv, _ := newMemoryServer(t, arto)
	persons := listPersons(t, srv)
	require.Len(t, persons, 1)
	assert.Equal(t, "Arto Hellas", persons[0].Name)
}

func TestScenario_CreateGrowsList(t *testing.T) {
	srv, _ := newMemoryServer(t, arto)

	w := doRequest(t, srv.Router(), http.MethodPost, "/api/persons", `{"name":"Ada Lovelace","number":"123-456789"}`)
	require.Equal(t, http.StatusOK, w.Code)
	created := decodePerson(t, w.Body.Bytes())
	_, err := uuid.Parse(created.ID)
	require.NoError(t, err)

	persons := listPersons(t, srv)
	require.Len(t, persons, 2)
	assert.Equal(t, created, persons[1])

	w = doRequest(t, srv.Router(), http.MethodGet, "/api/persons/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decodePerson(t, w.Body.Bytes()))
}

func TestScenario_UpdateExisting(t *testing.T) {
	srv, _ := newMemoryServer(t, arto)
	id := listPersons(t, srv)[0].ID

	w := doRequest(t, srv.Router(), http.MethodPut, "/api/persons/"+id, `{"name":"Arto Hellas","number":"12-3456789"}`)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodePerson(t, w.Body.Bytes())
	assert.Equal(t, "12-3456789", updated.Number)
	assert.Equal(t, id, updated.ID)

	assert.Equal(t, "12-3456789", listPersons(t, srv)[0].Number)
}

func TestScenario_CreateMissingFieldsLeavesStoreUnchanged(t *testing.T) {
	srv, st := newMemoryServer(t, arto)

	w := doRequest(t, srv.Router(), http.MethodPost, "/api/persons", `{"number":"123456"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(t, srv.Router(), http.MethodPost, "/api/persons", `{"name":"Grace Hopper"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	n, err := st.CountPersons(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScenario_DeleteSoleRecord(t *testing.T) {
	srv, _ := newMemoryServer(t, arto)
	id := listPersons(t, srv)[0].ID

	w := doRequest(t, srv.Router(), http.MethodDelete, "/api/persons/"+id, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, listPersons(t, srv))

	w = doRequest(t, srv.Router(), http.MethodDelete, "/api/persons/"+id, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Person not found", decodeError(t, w))
}

func TestScenario_ErrorPrecedenceOnUpdate(t *testing.T) {
	srv, _ := newMemoryServer(t, arto)

	// Malformed id wins over invalid fields.
	w := doRequest(t, srv.Router(), http.MethodPut, "/api/persons/abc", `{"name":"Al","number":"1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "malformed id", decodeError(t, w))

	// Invalid fields win over an unknown id.
	w = doRequest(t, srv.Router(), http.MethodPut, "/api/persons/"+uuid.NewString(), `{"name":"Al","number":"040-123456"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), "shorter than the minimum allowed length (3)")

	w = doRequest(t, srv.Router(), http.MethodPut, "/api/persons/"+uuid.NewString(), `{"name":"Arto Hellas","number":"040-123456"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Unable to update", decodeError(t, w))
}

func TestScenario_RejectedNumbersAreNotStored(t *testing.T) {
	srv, st := newMemoryServer(t)

	for _, number := range []string{"12-34567", "123-4567", "1234567890", "1-23456789", "040-12a456"} {
		w := doRequest(t, srv.Router(), http.MethodPost, "/api/persons",
			fmt.Sprintf(`{"name":"Grace Hopper","number":%q}`, number))
		require.Equal(t, http.StatusBadRequest, w.Code, number)
		assert.Contains(t, decodeError(t, w), number+" is not a valid phone number!")
	}

	n, err := st.CountPersons(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScenario_NumbersAtMinimumLengthAreStored(t *testing.T) {
	srv, st := newMemoryServer(t)

	for _, number := range []string{"12-345678", "123-45678"} {
		w := doRequest(t, srv.Router(), http.MethodPost, "/api/persons",
			fmt.Sprintf(`{"name":"Grace Hopper","number":%q}`, number))
		require.Equal(t, http.StatusOK, w.Code, number)
	}

	n, err := st.CountPersons(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestScenario_InfoCountsRecords(t *testing.T) {
	srv, _ := newMemoryServer(t, arto, model.Person{Name: "Ada Lovelace", Number: "123-456789"})

	w := doRequest(t, srv.Router(), http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<p>Phonebook has info for 2 people</p>")
}

func TestScenario_GetMalformedAndUnknown(t *testing.T) {
	srv, _ := newMemoryServer(t, arto)

	w := doRequest(t, srv.Router(), http.MethodGet, "/api/persons/12345", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "malformed id", decodeError(t, w))

	w = doRequest(t, srv.Router(), http.MethodGet, "/api/persons/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Body.String())
}

package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/events"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/httputil"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/model"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/store"
	"github.com/kshg9/FSO-part11-ci-phonebook/pkg/types"
)

const (
	msgContentMissing   = "Content missing"
	msgMalformedBody    = "malformed request body"
	msgUnableToUpdate   = "Unable to update"
	msgPersonNotFound   = "Person not found"
	msgUnknownEndpoint  = "Unknown endpoint"
	msgStoreUnreachable = "store is not reachable"
)

// ---------------------------------------------------------------------------
// List: GET /api/persons
// ---------------------------------------------------------------------------

func (s *Server) handleListPersons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	persons, err := s.store.ListPersons(ctx)
	if err != nil {
		s.respondStoreError(w, r, "ListPersons", err, "")
		return
	}

	out := make([]types.Person, 0, len(persons))
	for _, p := range persons {
		out = append(out, toAPIPerson(p))
	}
	httputil.RespondJSON(w, http.StatusOK, out)
}

// ---------------------------------------------------------------------------
// Create: POST /api/persons
// ---------------------------------------------------------------------------

// handleCreatePerson stores a new entry. Both fields must be present before
// the store is consulted; the store then applies the field rules.
func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.PersonRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, httputil.ErrEmptyBody) {
		httputil.RespondError(w, http.StatusBadRequest, msgMalformedBody)
		return
	}
	if req.Name == "" || req.Number == "" {
		httputil.RespondError(w, http.StatusBadRequest, msgContentMissing)
		return
	}

	created, err := s.store.CreatePerson(ctx, model.Person{Name: req.Name, Number: req.Number})
	if err != nil {
		s.respondStoreError(w, r, "CreatePerson", err, "")
		return
	}

	s.publish(r, "CreatePerson", func() (events.Event, error) { return events.PersonCreated(created) })
	httputil.RespondJSON(w, http.StatusOK, toAPIPerson(created))
}

// ---------------------------------------------------------------------------
// Get: GET /api/persons/{id}
// ---------------------------------------------------------------------------

// handleGetPerson answers an unknown id with a bare 404.
func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPerson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, r, "GetPerson", err, "")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, toAPIPerson(p))
}

// ---------------------------------------------------------------------------
// Update: PUT /api/persons/{id}
// ---------------------------------------------------------------------------

// handleUpdatePerson replaces name and number. Missing fields are passed
// through so the store reports them as required.
func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.PersonRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, httputil.ErrEmptyBody) {
		httputil.RespondError(w, http.StatusBadRequest, msgMalformedBody)
		return
	}

	updated, err := s.store.UpdatePerson(ctx, model.Person{
		ID:     chi.URLParam(r, "id"),
		Name:   req.Name,
		Number: req.Number,
	})
	if err != nil {
		s.respondStoreError(w, r, "UpdatePerson", err, msgUnableToUpdate)
		return
	}

	s.publish(r, "UpdatePerson", func() (events.Event, error) { return events.PersonUpdated(updated) })
	httputil.RespondJSON(w, http.StatusOK, toAPIPerson(updated))
}

// ---------------------------------------------------------------------------
// Delete: DELETE /api/persons/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := s.store.DeletePerson(ctx, id); err != nil {
		s.respondStoreError(w, r, "DeletePerson", err, msgPersonNotFound)
		return
	}

	if key, err := store.ParseID(id); err == nil {
		id = key
	}
	s.publish(r, "DeletePerson", func() (events.Event, error) { return events.PersonDeleted(id) })
	httputil.RespondStatus(w, http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func toAPIPerson(p model.Person) types.Person {
	return types.Person{
		ID:     p.ID,
		Name:   p.Name,
		Number: p.Number,
	}
}

// publish sends a change event. Failures are logged and never reach the
// client.
func (s *Server) publish(r *http.Request, handler string, build func() (events.Event, error)) {
	logger := log.Ctx(r.Context()).With().Str("handler", handler).Logger()

	event, err := build()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to build change event")
		return
	}
	if err := s.publisher.Publish(r.Context(), event); err != nil {
		logger.Warn().Err(err).Str("event_type", event.Type).Msg("failed to publish change event")
	}
}

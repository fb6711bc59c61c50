package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/httputil"
	"github.com/kshg9/FSO-part11-ci-phonebook/pkg/types"
)

// infoTimeLayout renders like a browser Date string, e.g.
// "Tue Mar 05 2024 14:03:09 GMT+0200 (EET)".
const infoTimeLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.RespondText(w, http.StatusOK, "OK")
}

// handleReadiness reports 503 while the store cannot be pinged.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
		httputil.RespondError(w, http.StatusServiceUnavailable, msgStoreUnreachable)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, types.ReadinessResponse{Status: "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, types.VersionResponse{
		Version:   s.version,
		Commit:    s.commit,
		BuildDate: s.buildDate,
	})
}

// handleInfo renders the entry count and the current server time.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountPersons(r.Context())
	if err != nil {
		s.respondStoreError(w, r, "Info", err, "")
		return
	}

	body := fmt.Sprintf("<p>Phonebook has info for %d people</p>\n<p>%s</p>\n",
		count, s.now().Format(infoTimeLayout))
	httputil.RespondHTML(w, http.StatusOK, body)
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if len(s.openapiSpec) == 0 {
		s.handleUnknownEndpoint(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.openapiSpec)
}

func (s *Server) handleUnknownEndpoint(w http.ResponseWriter, _ *http.Request) {
	httputil.RespondError(w, http.StatusNotFound, msgUnknownEndpoint)
}

package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kshg9/FSO-part11-ci-phonebook/internal/httputil"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/model"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/store"
)

const (
	msgMalformedID   = "malformed id"
	msgInternalError = "internal server error"
)

// respondStoreError maps a store failure to a response. notFoundMessage is
// the error body for KindNotFound; empty means a bare 404.
func (s *Server) respondStoreError(w http.ResponseWriter, r *http.Request, handler string, err error, notFoundMessage string) {
	switch store.KindOf(err) {
	case store.KindMalformedID:
		httputil.RespondError(w, http.StatusBadRequest, msgMalformedID)

	case store.KindValidation:
		httputil.RespondError(w, http.StatusBadRequest, validationMessage(err))

	case store.KindNotFound:
		if notFoundMessage == "" {
			httputil.RespondStatus(w, http.StatusNotFound)
			return
		}
		httputil.RespondError(w, http.StatusNotFound, notFoundMessage)

	default:
		log.Ctx(r.Context()).Error().Err(err).Str("handler", handler).Msg("store operation failed")
		httputil.RespondError(w, http.StatusInternalServerError, msgInternalError)
	}
}

// validationMessage returns the field rule summary without any wrapping
// added on the way up.
func validationMessage(err error) string {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return err.Error()
}

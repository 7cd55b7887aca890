package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/technobid/auction-backend/internal/auth"
	"github.com/technobid/auction-backend/internal/authority"
	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/internal/logging"
	"github.com/technobid/auction-backend/pkg/types"
)

const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any, log *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && log != nil {
		log.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, class := statusFor(err)
	log := logging.FromContext(r.Context(), h.log)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, types.MessageResponse{Message: err.Error(), Class: class}, log)
}

// statusFor maps an error onto its HTTP status and client-facing class.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, types.ClassAuth
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, string(engine.ClassInternal)
	case errors.Is(err, authority.ErrStopped):
		return http.StatusServiceUnavailable, string(engine.ClassInternal)
	}
	class := engine.ClassOf(err)
	switch class {
	case engine.ClassValidation:
		return http.StatusBadRequest, string(class)
	case engine.ClassNotFound:
		return http.StatusNotFound, string(class)
	case engine.ClassContention, engine.ClassState:
		return http.StatusConflict, string(class)
	default:
		return http.StatusInternalServerError, string(engine.ClassInternal)
	}
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed body: %v", engine.ErrValidation, err)
	}
	return nil
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Agentopians/WeAi/pkg/aggregator"
	"github.com/Agentopians/WeAi/pkg/common/types"
)

func writeJSON(w http.ResponseWriter, status int, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err string) {
	writeJSON(w, status, types.SignatureResponse{Success: false, Error: err})
}

// statusForError maps aggregator errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, aggregator.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, aggregator.ErrTaskClosed):
		return http.StatusConflict
	case errors.Is(err, aggregator.ErrUnauthorizedOperator), errors.Is(err, aggregator.ErrInvalidSignature):
		return http.StatusForbidden
	case errors.Is(err, aggregator.ErrInvalidTask), errors.Is(err, aggregator.ErrDuplicateTask):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

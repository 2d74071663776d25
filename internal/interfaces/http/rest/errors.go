package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "memory-engine/pkg/errors"
)

// statusForKind maps the kind taxonomy (spec §7) onto HTTP status codes,
// the same not-a-type-switch translation the teacher's error handler does
// for its own node/edge error set.
func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindCancelled:
		return http.StatusRequestTimeout
	case apperrors.KindUpstreamLlm, apperrors.KindUpstreamEmbedding, apperrors.KindUpstreamStorage, apperrors.KindDegraded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	status := http.StatusInternalServerError
	kind := apperrors.KindInternal
	if errors.As(err, &appErr) {
		status = statusForKind(appErr.Kind)
		kind = appErr.Kind
	}
	if retryAfter, ok := apperrors.RetryAfter(err); ok {
		w.Header().Set("Retry-After", retryAfter.String())
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

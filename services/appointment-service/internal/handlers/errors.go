package handlers

import (
	"log/slog"
	"net/http"

	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/services/appointment-service/internal/apperr"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindTemporal:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders domain errors with their reason. Anything else is logged
// and reported as a bare 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnknown {
		logger.Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteError(w, statusFor(kind), apperr.Reason(err))
}

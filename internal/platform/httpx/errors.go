package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-erp/meridian-erp/internal/ledger/oplock"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// RespondError maps ledger domain errors to HTTP responses using RFC7807.
// Unrecognised errors become an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	var conflict *oplock.ConflictError
	switch {
	case errors.Is(err, shared.ErrJournalNotFound),
		errors.Is(err, shared.ErrBalanceNotFound),
		errors.Is(err, shared.ErrAccountNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &conflict):
		JSON(w, http.StatusConflict, map[string]any{
			"title":            "Version Conflict",
			"status":           http.StatusConflict,
			"detail":           err.Error(),
			"expected_version": conflict.Expected,
			"actual_version":   conflict.Actual,
		})
	case errors.Is(err, oplock.ErrDeleted),
		errors.Is(err, shared.ErrAlreadyCancelled),
		errors.Is(err, shared.ErrVoucherExists):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrUnbalanced):
		Problem(w, http.StatusUnprocessableEntity, "Unbalanced Journal", err.Error())
	case isValidation(err):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func isValidation(err error) bool {
	var verr *shared.ValidationError
	return errors.As(err, &verr)
}

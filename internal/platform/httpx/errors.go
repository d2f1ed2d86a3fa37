package httpx

import (
	"net/http"

	"github.com/pawnbook/pawnbook/internal/shared"
)

// RespondError maps classified domain errors to RFC7807 responses.
// Consistency errors deliberately leak nothing: the caller sees a generic
// internal ledger error while the full cause is logged server-side.
func RespondError(w http.ResponseWriter, err error) {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		Problem(w, http.StatusBadRequest, string(shared.KindValidation), "Validation Failed", err.Error())
	case shared.KindReferential:
		Problem(w, http.StatusNotFound, string(shared.KindReferential), "Unknown Reference", err.Error())
	case shared.KindStateConflict:
		Problem(w, http.StatusConflict, string(shared.KindStateConflict), "Conflict", err.Error())
	case shared.KindConsistency:
		Problem(w, http.StatusInternalServerError, string(shared.KindConsistency), "Internal Ledger Error", "")
	default:
		Problem(w, http.StatusInternalServerError, "", "Internal Error", "")
	}
}

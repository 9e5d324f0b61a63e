package httptransport

import (
	"net/http"

	"pharmatrace/pkg/platform/httputil"
)

// handleVerify is the public read path: anyone with a printed code can
// look it up. No acting party, no custody detail.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	result, err := h.verifier.FindByIdentifierOrBatch(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

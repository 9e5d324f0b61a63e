package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	partymodels "pharmatrace/internal/party/models"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/httputil"
)

type registerPartyRequest struct {
	Name string           `json:"name"`
	Role partymodels.Role `json:"role"`
}

func (h *Handler) handleRegisterParty(w http.ResponseWriter, r *http.Request) {
	var req registerPartyRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	party, err := h.parties.Register(r.Context(), req.Name, req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, party)
}

func (h *Handler) handleGetParty(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParsePartyID(chi.URLParam(r, "partyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	party, err := h.parties.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, party)
}

func (h *Handler) handleListParties(w http.ResponseWriter, r *http.Request) {
	role := partymodels.Role(r.URL.Query().Get("role"))

	parties, err := h.parties.ListByRole(r.Context(), role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"parties": parties})
}

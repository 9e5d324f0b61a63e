package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/httputil"
)

func (h *Handler) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	uid, err := domain.ParseUnitUID(chi.URLParam(r, "uid"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	unit, err := h.registry.Get(r.Context(), uid)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, unit)
}

type sellUnitRequest struct {
	ActorID string `json:"actor_id"`
}

func (h *Handler) handleSellUnit(w http.ResponseWriter, r *http.Request) {
	uid, err := domain.ParseUnitUID(chi.URLParam(r, "uid"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req sellUnitRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	seller, err := domain.ParsePartyID(req.ActorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	unit, err := h.registry.Sell(r.Context(), uid, seller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, unit)
}

func (h *Handler) handleListBatchUnits(w http.ResponseWriter, r *http.Request) {
	batchID, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	units, err := h.registry.ListByBatch(r.Context(), batchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"units": units})
}

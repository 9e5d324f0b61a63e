package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	recallmodels "pharmatrace/internal/recall/models"
	recallservice "pharmatrace/internal/recall/service"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/httputil"
)

type issueRecallRequest struct {
	ActorID  string `json:"actor_id"`
	BatchID  string `json:"batch_id"`
	Reason   string `json:"reason"`
	Severity string `json:"severity"`
	Action   string `json:"action"`
}

func (h *Handler) handleIssueRecall(w http.ResponseWriter, r *http.Request) {
	var req issueRecallRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor, err := domain.ParsePartyID(req.ActorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	batchID, err := domain.ParseBatchID(req.BatchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	notice, err := h.recalls.IssueRecall(r.Context(), actor, recallservice.IssueParams{
		BatchID:  batchID,
		Reason:   req.Reason,
		Severity: recallmodels.Severity(req.Severity),
		Action:   recallmodels.ActionType(req.Action),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, notice)
}

func (h *Handler) handleGetRecall(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRecallID(chi.URLParam(r, "recallID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	recall, err := h.recalls.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recall)
}

func (h *Handler) handleRecallHolders(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRecallID(chi.URLParam(r, "recallID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	notice, err := h.recalls.Holders(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, notice)
}

type closeRecallRequest struct {
	ActorID string `json:"actor_id"`
}

func (h *Handler) handleCloseRecall(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRecallID(chi.URLParam(r, "recallID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req closeRecallRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor, err := domain.ParsePartyID(req.ActorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	recall, err := h.recalls.CloseRecall(r.Context(), id, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recall)
}

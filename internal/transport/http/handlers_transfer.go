package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	transfermodels "pharmatrace/internal/transfer/models"
	transferservice "pharmatrace/internal/transfer/service"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/httputil"
)

type executeTransferRequest struct {
	SenderID   string   `json:"sender_id"`
	ReceiverID string   `json:"receiver_id"`
	BatchID    string   `json:"batch_id"`
	Quantity   int      `json:"quantity"`
	UnitUIDs   []string `json:"unit_uids"`
	InvoiceNo  string   `json:"invoice_no"`
	Purpose    string   `json:"purpose"`
}

func (h *Handler) handleExecuteTransfer(w http.ResponseWriter, r *http.Request) {
	var req executeTransferRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	sender, err := domain.ParsePartyID(req.SenderID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	receiver, err := domain.ParsePartyID(req.ReceiverID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	batchID, err := domain.ParseBatchID(req.BatchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	uids := make([]domain.UnitUID, 0, len(req.UnitUIDs))
	for _, raw := range req.UnitUIDs {
		uid, err := domain.ParseUnitUID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		uids = append(uids, uid)
	}

	transfer, err := h.engine.ExecuteTransfer(r.Context(), transferservice.ExecuteParams{
		SenderID:   sender,
		ReceiverID: receiver,
		BatchID:    batchID,
		Quantity:   req.Quantity,
		UnitUIDs:   uids,
		InvoiceNo:  req.InvoiceNo,
		Purpose:    transfermodels.Purpose(req.Purpose),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, transfer)
}

func (h *Handler) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseTransferID(chi.URLParam(r, "transferID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfer, err := h.engine.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfer)
}

func (h *Handler) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	partyID, err := domain.ParsePartyID(r.URL.Query().Get("party_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfers, err := h.engine.ListByParty(r.Context(), partyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transfers": transfers})
}

type transferActionRequest struct {
	ActorID string `json:"actor_id"`
}

func (h *Handler) handleAcknowledgeTransfer(w http.ResponseWriter, r *http.Request) {
	h.transferAction(w, r, h.engine.AcknowledgeReceipt)
}

func (h *Handler) handleCancelTransfer(w http.ResponseWriter, r *http.Request) {
	h.transferAction(w, r, h.engine.CancelTransfer)
}

func (h *Handler) transferAction(
	w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, id domain.TransferID, actor domain.PartyID) (*transfermodels.Transfer, error),
) {
	id, err := domain.ParseTransferID(chi.URLParam(r, "transferID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req transferActionRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor, err := domain.ParsePartyID(req.ActorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfer, err := action(r.Context(), id, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfer)
}

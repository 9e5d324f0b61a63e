package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	batchservice "pharmatrace/internal/batch/service"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/httputil"
)

type createBatchRequest struct {
	ActorID        string `json:"actor_id"`
	ProductID      string `json:"product_id"`
	BatchNumber    string `json:"batch_number"`
	TotalQuantity  int    `json:"total_quantity"`
	MfgDate        string `json:"mfg_date"`
	ExpDate        string `json:"exp_date"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor, err := domain.ParsePartyID(req.ActorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	productID, err := domain.ParseProductID(req.ProductID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	mfgDate, err := parseDate(req.MfgDate, "mfg_date")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	expDate, err := parseDate(req.ExpDate, "exp_date")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	batch, err := h.ledger.CreateBatch(r.Context(), actor, batchservice.CreateBatchParams{
		ProductID:      productID,
		BatchNumber:    req.BatchNumber,
		TotalQuantity:  req.TotalQuantity,
		MfgDate:        mfgDate,
		ExpDate:        expDate,
		UnitPriceCents: req.UnitPriceCents,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, batch)
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	batch, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, batch)
}

func (h *Handler) handleGetHolding(w http.ResponseWriter, r *http.Request) {
	batchID, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	partyID, err := domain.ParsePartyID(chi.URLParam(r, "partyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	quantity, err := h.ledger.Holding(r.Context(), batchID, partyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"batch_id": batchID,
		"party_id": partyID,
		"quantity": quantity,
	})
}

// parseDate accepts dates as RFC 3339 timestamps or bare YYYY-MM-DD days.
func parseDate(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, field+" must be RFC 3339 or YYYY-MM-DD")
}

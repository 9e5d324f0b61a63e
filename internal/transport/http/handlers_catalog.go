package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	catalogmodels "pharmatrace/internal/catalog/models"
	catalogservice "pharmatrace/internal/catalog/service"
	"pharmatrace/pkg/domain"
	"pharmatrace/pkg/platform/httputil"
)

type createProductRequest struct {
	ActorID        string `json:"actor_id"`
	Name           string `json:"name"`
	GenericName    string `json:"generic_name"`
	DosageForm     string `json:"dosage_form"`
	Strength       string `json:"strength"`
	BasePriceCents int64  `json:"base_price_cents"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor, err := domain.ParsePartyID(req.ActorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	product, err := h.catalog.Create(r.Context(), actor, catalogservice.CreateProductParams{
		Name:           req.Name,
		GenericName:    req.GenericName,
		DosageForm:     req.DosageForm,
		Strength:       req.Strength,
		BasePriceCents: req.BasePriceCents,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, product)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	product, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, product)
}

type updateProductRequest struct {
	ActorID        string `json:"actor_id"`
	Name           string `json:"name"`
	GenericName    string `json:"generic_name"`
	DosageForm     string `json:"dosage_form"`
	Strength       string `json:"strength"`
	BasePriceCents int64  `json:"base_price_cents"`
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req updateProductRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor, err := domain.ParsePartyID(req.ActorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	product, err := h.catalog.Update(r.Context(), actor, id, catalogmodels.ProductUpdate{
		Name:           req.Name,
		GenericName:    req.GenericName,
		DosageForm:     req.DosageForm,
		Strength:       req.Strength,
		BasePriceCents: req.BasePriceCents,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, product)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	manufacturerID, err := domain.ParsePartyID(r.URL.Query().Get("manufacturer_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	products, err := h.catalog.ListByManufacturer(r.Context(), manufacturerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"products": products})
}

// Package httptransport is the thin HTTP layer. Handlers decode the
// request, delegate to a service, and render the result; business rules
// never live here.
package httptransport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	batchservice "pharmatrace/internal/batch/service"
	catalogservice "pharmatrace/internal/catalog/service"
	"pharmatrace/internal/platform/middleware"
	partyservice "pharmatrace/internal/party/service"
	printjobservice "pharmatrace/internal/printjob/service"
	recallservice "pharmatrace/internal/recall/service"
	transferservice "pharmatrace/internal/transfer/service"
	unitservice "pharmatrace/internal/unit/service"
	verifyservice "pharmatrace/internal/verify/service"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/httputil"
)

const requestTimeout = 30 * time.Second

// maxBodyBytes caps request bodies. Unit transfers carry UID lists, so the
// limit is generous but bounded.
const maxBodyBytes = 1 << 20

// Handler holds every service the HTTP surface delegates to.
type Handler struct {
	logger    *slog.Logger
	parties   *partyservice.Service
	catalog   *catalogservice.Service
	ledger    *batchservice.Ledger
	registry  *unitservice.Registry
	engine    *transferservice.Engine
	recalls   *recallservice.Propagator
	scheduler *printjobservice.Scheduler
	watcher   *printjobservice.Watcher
	verifier  *verifyservice.Verifier
}

func NewHandler(
	logger *slog.Logger,
	parties *partyservice.Service,
	catalog *catalogservice.Service,
	ledger *batchservice.Ledger,
	registry *unitservice.Registry,
	engine *transferservice.Engine,
	recalls *recallservice.Propagator,
	scheduler *printjobservice.Scheduler,
	watcher *printjobservice.Watcher,
	verifier *verifyservice.Verifier,
) *Handler {
	return &Handler{
		logger:    logger,
		parties:   parties,
		catalog:   catalog,
		ledger:    ledger,
		registry:  registry,
		engine:    engine,
		recalls:   recalls,
		scheduler: scheduler,
		watcher:   watcher,
		verifier:  verifier,
	}
}

// NewRouter wires all endpoints. The watch endpoint streams, so it sits
// outside the timeout middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Post("/parties", h.handleRegisterParty)
		r.Get("/parties", h.handleListParties)
		r.Get("/parties/{partyID}", h.handleGetParty)

		r.Post("/products", h.handleCreateProduct)
		r.Get("/products", h.handleListProducts)
		r.Get("/products/{productID}", h.handleGetProduct)
		r.Patch("/products/{productID}", h.handleUpdateProduct)

		r.Post("/batches", h.handleCreateBatch)
		r.Get("/batches/{batchID}", h.handleGetBatch)
		r.Get("/batches/{batchID}/holdings/{partyID}", h.handleGetHolding)
		r.Get("/batches/{batchID}/units", h.handleListBatchUnits)
		r.Get("/batches/{batchID}/print-jobs", h.handleListBatchJobs)

		r.Post("/transfers", h.handleExecuteTransfer)
		r.Get("/transfers", h.handleListTransfers)
		r.Get("/transfers/{transferID}", h.handleGetTransfer)
		r.Post("/transfers/{transferID}/acknowledge", h.handleAcknowledgeTransfer)
		r.Post("/transfers/{transferID}/cancel", h.handleCancelTransfer)

		r.Get("/units/{uid}", h.handleGetUnit)
		r.Post("/units/{uid}/sell", h.handleSellUnit)

		r.Post("/recalls", h.handleIssueRecall)
		r.Get("/recalls/{recallID}", h.handleGetRecall)
		r.Get("/recalls/{recallID}/holders", h.handleRecallHolders)
		r.Post("/recalls/{recallID}/close", h.handleCloseRecall)

		r.Post("/print-jobs", h.handleCreateJob)
		r.Post("/print-jobs/redeem", h.handleRedeemCode)
		r.Get("/print-jobs/{jobID}", h.handleGetJob)
		r.Post("/print-jobs/{jobID}/progress", h.handleRecordProgress)
		r.Post("/print-jobs/{jobID}/transition", h.handleTransitionJob)

		r.Get("/verify", h.handleVerify)
	})

	// Server-sent events; the connection stays open until the job is
	// terminal or the client disconnects.
	r.Get("/print-jobs/{jobID}/watch", h.handleWatchJob)

	return r
}

// decode parses a JSON request body into dst with a bounded reader.
func decode(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err == io.EOF {
			return dErrors.New(dErrors.CodeInvalidInput, "request body is required")
		}
		return dErrors.New(dErrors.CodeInvalidInput, "request body is not valid JSON")
	}
	return nil
}

package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	auditservice "pharmatrace/internal/audit/service"
	auditstore "pharmatrace/internal/audit/store"
	batchservice "pharmatrace/internal/batch/service"
	batchstore "pharmatrace/internal/batch/store"
	catalogservice "pharmatrace/internal/catalog/service"
	catalogstore "pharmatrace/internal/catalog/store"
	partyservice "pharmatrace/internal/party/service"
	partystore "pharmatrace/internal/party/store"
	"pharmatrace/internal/printjob/notify"
	printjobservice "pharmatrace/internal/printjob/service"
	printjobstore "pharmatrace/internal/printjob/store"
	recallservice "pharmatrace/internal/recall/service"
	recallstore "pharmatrace/internal/recall/store"
	transferservice "pharmatrace/internal/transfer/service"
	transferstore "pharmatrace/internal/transfer/store"
	unitservice "pharmatrace/internal/unit/service"
	unitstore "pharmatrace/internal/unit/store"
	verifyservice "pharmatrace/internal/verify/service"
)

type RouterSuite struct {
	suite.Suite
	router http.Handler

	manufacturerID string
	distributorID  string
	productID      string
	batchID        string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	parties := partyservice.New(partystore.NewInMemory())
	catalog := catalogservice.New(catalogstore.NewInMemory(), parties)
	ledger := batchservice.NewLedger(batchstore.NewInMemory(), catalog, parties, nil)
	registry := unitservice.New(unitstore.NewInMemory(), ledger, nil)
	trail := auditservice.New(auditstore.NewInMemory(), logger)
	txRunner := transferservice.NewMemoryTx()
	engine := transferservice.New(transferstore.NewInMemory(), txRunner,
		ledger, registry, parties, trail, nil, 3)
	recalls := recallservice.New(recallstore.NewInMemory(), txRunner, ledger, registry, engine, trail)
	scheduler := printjobservice.New(printjobstore.NewInMemory(), ledger, registry,
		printjobservice.NewCodeSigner("test-signing-key"), notify.NewInProcess(), trail, nil, logger)
	watcher := printjobservice.NewWatcher(scheduler, nil, 10*time.Millisecond)
	verifier := verifyservice.New(registry, ledger, catalog, parties, recalls)

	handler := NewHandler(logger, parties, catalog, ledger, registry, engine, recalls, scheduler, watcher, verifier)
	s.router = NewRouter(handler)

	s.manufacturerID = s.do(http.MethodPost, "/parties", map[string]any{
		"name": "Acme Pharma", "role": "MANUFACTURER",
	}, http.StatusCreated)["id"].(string)
	s.distributorID = s.do(http.MethodPost, "/parties", map[string]any{
		"name": "Metro Distribution", "role": "DISTRIBUTOR",
	}, http.StatusCreated)["id"].(string)

	s.productID = s.do(http.MethodPost, "/products", map[string]any{
		"actor_id": s.manufacturerID, "name": "Paracetamol 500mg",
		"generic_name": "Paracetamol", "dosage_form": "Tablet",
		"strength": "500mg", "base_price_cents": 250,
	}, http.StatusCreated)["id"].(string)

	s.batchID = s.do(http.MethodPost, "/batches", map[string]any{
		"actor_id": s.manufacturerID, "product_id": s.productID,
		"batch_number": "BNHTTP", "total_quantity": 1000,
		"mfg_date": "2026-01-10", "exp_date": "2028-01-10",
		"unit_price_cents": 300,
	}, http.StatusCreated)["id"].(string)
}

// do issues a request and decodes the JSON response, asserting the status.
func (s *RouterSuite) do(method, path string, body any, wantStatus int) map[string]any {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(wantStatus, rec.Code, "body: %s", rec.Body.String())

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&decoded))
	return decoded
}

func (s *RouterSuite) TestPartyEndpoints() {
	s.Run("get by id", func() {
		got := s.do(http.MethodGet, "/parties/"+s.manufacturerID, nil, http.StatusOK)
		s.Equal("Acme Pharma", got["name"])
	})

	s.Run("unknown id is a 404 with a coded body", func() {
		got := s.do(http.MethodGet, "/parties/3f1e9c1a-72e2-4a3b-b8a1-91b1f0e0c001", nil, http.StatusNotFound)
		s.Equal("party_not_found", got["error"])
	})

	s.Run("malformed id is a 400", func() {
		got := s.do(http.MethodGet, "/parties/not-a-uuid", nil, http.StatusBadRequest)
		s.Equal("invalid_input", got["error"])
	})

	s.Run("list by role", func() {
		got := s.do(http.MethodGet, "/parties?role=DISTRIBUTOR", nil, http.StatusOK)
		s.Len(got["parties"], 1)
	})
}

func (s *RouterSuite) TestTransferLifecycleOverHTTP() {
	transfer := s.do(http.MethodPost, "/transfers", map[string]any{
		"sender_id": s.manufacturerID, "receiver_id": s.distributorID,
		"batch_id": s.batchID, "quantity": 400, "invoice_no": "INV-9001",
	}, http.StatusCreated)
	s.Equal("IN_TRANSIT", transfer["status"])
	transferID := transfer["id"].(string)

	s.Run("stock left the pool at dispatch", func() {
		batch := s.do(http.MethodGet, "/batches/"+s.batchID, nil, http.StatusOK)
		s.EqualValues(600, batch["current_stock"])
	})

	s.Run("only the addressed receiver can acknowledge", func() {
		got := s.do(http.MethodPost, "/transfers/"+transferID+"/acknowledge", map[string]any{
			"actor_id": s.manufacturerID,
		}, http.StatusBadRequest)
		s.Equal("invalid_input", got["error"])
	})

	s.Run("acknowledge credits the holding", func() {
		got := s.do(http.MethodPost, "/transfers/"+transferID+"/acknowledge", map[string]any{
			"actor_id": s.distributorID,
		}, http.StatusOK)
		s.Equal("RECEIVED", got["status"])

		holding := s.do(http.MethodGet,
			fmt.Sprintf("/batches/%s/holdings/%s", s.batchID, s.distributorID), nil, http.StatusOK)
		s.EqualValues(400, holding["quantity"])
	})

	s.Run("a second acknowledgment conflicts", func() {
		got := s.do(http.MethodPost, "/transfers/"+transferID+"/acknowledge", map[string]any{
			"actor_id": s.distributorID,
		}, http.StatusConflict)
		s.Equal("illegal_transition", got["error"])
	})
}

func (s *RouterSuite) TestInsufficientStockConflicts() {
	got := s.do(http.MethodPost, "/transfers", map[string]any{
		"sender_id": s.manufacturerID, "receiver_id": s.distributorID,
		"batch_id": s.batchID, "quantity": 1001,
	}, http.StatusConflict)
	s.Equal("insufficient_stock", got["error"])
}

func (s *RouterSuite) TestPrintJobAndVerify() {
	created := s.do(http.MethodPost, "/print-jobs", map[string]any{
		"actor_id": s.manufacturerID, "batch_id": s.batchID,
		"target_quantity": 20, "strips_per_box": 10, "boxes_per_carton": 5,
	}, http.StatusCreated)
	code := created["access_code"].(string)
	s.NotEmpty(code)
	jobID := created["job"].(map[string]any)["id"].(string)

	redeemed := s.do(http.MethodPost, "/print-jobs/redeem", map[string]any{"code": code}, http.StatusOK)
	s.Equal("PRINTING", redeemed["status"])

	s.do(http.MethodPost, "/print-jobs/"+jobID+"/progress", map[string]any{"printed": 20}, http.StatusOK)
	completed := s.do(http.MethodPost, "/print-jobs/"+jobID+"/transition", map[string]any{
		"actor_id": s.manufacturerID, "action": "COMPLETE",
	}, http.StatusOK)
	s.Equal("COMPLETED", completed["status"])

	s.Run("minted units are publicly verifiable", func() {
		result := s.do(http.MethodGet, "/verify?q=BNHTTP-S00001", nil, http.StatusOK)
		s.Equal("UNIT", result["match"])
		s.Equal(false, result["recalled"])
	})

	s.Run("batch numbers verify too", func() {
		result := s.do(http.MethodGet, "/verify?q=bnhttp", nil, http.StatusOK)
		s.Equal("BATCH", result["match"])
	})
}

func (s *RouterSuite) TestRecallOverHTTP() {
	notice := s.do(http.MethodPost, "/recalls", map[string]any{
		"actor_id": s.manufacturerID, "batch_id": s.batchID,
		"reason": "stability failure", "severity": "CRITICAL", "action": "RETURN",
	}, http.StatusCreated)
	recall := notice["recall"].(map[string]any)
	s.Equal("ACTIVE", recall["status"])

	s.Run("recalled batch refuses shipments", func() {
		got := s.do(http.MethodPost, "/transfers", map[string]any{
			"sender_id": s.manufacturerID, "receiver_id": s.distributorID,
			"batch_id": s.batchID, "quantity": 10,
		}, http.StatusConflict)
		s.Equal("batch_recalled", got["error"])
	})

	s.Run("verification surfaces the recall", func() {
		result := s.do(http.MethodGet, "/verify?q=BNHTTP", nil, http.StatusOK)
		s.Equal(true, result["recalled"])
		s.NotNil(result["active_recall"])
	})

	s.Run("issuer closes the recall", func() {
		got := s.do(http.MethodPost, "/recalls/"+recall["id"].(string)+"/close", map[string]any{
			"actor_id": s.manufacturerID,
		}, http.StatusOK)
		s.Equal("CLOSED", got["status"])
	})
}

func (s *RouterSuite) TestHealthz() {
	got := s.do(http.MethodGet, "/healthz", nil, http.StatusOK)
	s.Equal("ok", got["status"])
}

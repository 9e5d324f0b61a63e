package httptransport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pharmatrace/internal/allocator"
	printjobmodels "pharmatrace/internal/printjob/models"
	printjobservice "pharmatrace/internal/printjob/service"
	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/httputil"
)

type createJobRequest struct {
	ActorID        string `json:"actor_id"`
	BatchID        string `json:"batch_id"`
	TargetQuantity int    `json:"target_quantity"`
	StripsPerBox   int    `json:"strips_per_box"`
	BoxesPerCarton int    `json:"boxes_per_carton"`
	MachineID      string `json:"machine_id"`
	CodeTTL        string `json:"code_ttl,omitempty"`
}

// createJobResponse carries the access code alongside the job. This is the
// only response that ever contains the code in the clear.
type createJobResponse struct {
	Job        *printjobmodels.PrintJob `json:"job"`
	AccessCode string                   `json:"access_code"`
}

func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
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
	var ttl time.Duration
	if req.CodeTTL != "" {
		ttl, err = time.ParseDuration(req.CodeTTL)
		if err != nil || ttl <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "code_ttl must be a positive duration"))
			return
		}
	}

	job, code, err := h.scheduler.CreateJob(r.Context(), actor, printjobservice.CreateJobParams{
		BatchID:        batchID,
		TargetQuantity: req.TargetQuantity,
		Spec:           allocator.PackSpec{StripsPerBox: req.StripsPerBox, BoxesPerCarton: req.BoxesPerCarton},
		MachineID:      req.MachineID,
		CodeTTL:        ttl,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, createJobResponse{Job: job, AccessCode: code})
}

type redeemCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleRedeemCode(w http.ResponseWriter, r *http.Request) {
	var req redeemCodeRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	job, err := h.scheduler.RedeemCode(r.Context(), req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	job, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

func (h *Handler) handleListBatchJobs(w http.ResponseWriter, r *http.Request) {
	batchID, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	jobs, err := h.scheduler.ListByBatch(r.Context(), batchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

type recordProgressRequest struct {
	Printed int `json:"printed"`
}

func (h *Handler) handleRecordProgress(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req recordProgressRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	job, err := h.scheduler.RecordProgress(r.Context(), id, req.Printed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

type transitionJobRequest struct {
	ActorID string `json:"actor_id"`
	Action  string `json:"action"`
}

func (h *Handler) handleTransitionJob(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req transitionJobRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor, err := domain.ParsePartyID(req.ActorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	job, err := h.scheduler.Transition(r.Context(), id, actor, printjobmodels.Action(req.Action))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

// handleWatchJob streams job status changes as server-sent events until the
// job reaches a terminal state or the client disconnects.
func (h *Handler) handleWatchJob(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	updates, err := h.watcher.Watch(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for status := range updates {
		fmt.Fprintf(w, "event: status\ndata: %s\n\n", status)
		flusher.Flush()
	}
}

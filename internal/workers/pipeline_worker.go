package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pinggolf/aps-scheduler/internal/db"
	"github.com/pinggolf/aps-scheduler/internal/mes"
	"github.com/pinggolf/aps-scheduler/internal/model"
	"github.com/pinggolf/aps-scheduler/internal/pipeline"
	"github.com/pinggolf/aps-scheduler/internal/queue"
	"github.com/pinggolf/aps-scheduler/internal/refdata"
)

// RowSource resolves a decade-plan batch id to the rows it contains. The
// real plan-ingest query lives elsewhere; PipelineWorker only needs this
// narrow contract.
type RowSource interface {
	LoadDecadePlanRows(ctx context.Context, importBatchID string) ([]model.DecadePlanRow, error)
}

// DBRowSource adapts *db.Queries to RowSource.
type DBRowSource struct {
	Queries *db.Queries
}

func (s DBRowSource) LoadDecadePlanRows(ctx context.Context, importBatchID string) ([]model.DecadePlanRow, error) {
	return s.Queries.ListDecadePlanRows(ctx, importBatchID)
}

// PipelineWorker runs pipeline runs dispatched over NATS and publishes
// per-stage progress and a final completion or error event, mirroring the
// teacher's job-context-per-run cancellation pattern.
type PipelineWorker struct {
	nats       *queue.Manager
	runner     *pipeline.Runner
	refdata    *refdata.Provider
	rows       RowSource
	dispatcher mes.Dispatcher
	db         *db.Queries

	jobContexts    map[string]context.CancelFunc
	jobContextsMux sync.RWMutex
}

func NewPipelineWorker(nats *queue.Manager, runner *pipeline.Runner, refdataProvider *refdata.Provider, rows RowSource, dispatcher mes.Dispatcher, database *db.Queries) *PipelineWorker {
	return &PipelineWorker{
		nats:        nats,
		runner:      runner,
		refdata:     refdataProvider,
		rows:        rows,
		dispatcher:  dispatcher,
		db:          database,
		jobContexts: make(map[string]context.CancelFunc),
	}
}

// RunRequest is the payload published to SubjectRunStart.
type RunRequest struct {
	RunID         string `json:"runId"`
	ImportBatchID string `json:"importBatchId"`
}

// RunProgressUpdate is published once per completed stage.
type RunProgressUpdate struct {
	RunID      string                `json:"runId"`
	Stage      string                `json:"stage"`
	Status     pipeline.ProcessingStatus `json:"status"`
	Valid      int                   `json:"valid"`
	Dropped    int                   `json:"dropped"`
	DurationMS int64                 `json:"durationMs"`
}

// Start subscribes the worker to run-dispatch and cancellation subjects.
func (w *PipelineWorker) Start() error {
	_, err := w.nats.QueueSubscribe(queue.SubjectRunStart, queue.QueueGroupRun, w.handleRunRequest)
	if err != nil {
		return fmt.Errorf("failed to subscribe to run dispatch: %w", err)
	}

	_, err = w.nats.Subscribe("pipeline.run.cancel.*", w.handleCancelRequest)
	if err != nil {
		return fmt.Errorf("failed to subscribe to run cancellation: %w", err)
	}

	log.Println("Pipeline worker started and listening for run requests")
	return nil
}

func (w *PipelineWorker) createJobContext(runID string) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	w.jobContextsMux.Lock()
	w.jobContexts[runID] = cancel
	w.jobContextsMux.Unlock()
	return ctx
}

func (w *PipelineWorker) releaseJobContext(runID string) {
	w.jobContextsMux.Lock()
	delete(w.jobContexts, runID)
	w.jobContextsMux.Unlock()
}

func (w *PipelineWorker) handleCancelRequest(msg *nats.Msg) {
	var req struct {
		RunID string `json:"runId"`
	}
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("pipeline worker: failed to parse cancel request: %v", err)
		return
	}
	w.jobContextsMux.RLock()
	cancel, ok := w.jobContexts[req.RunID]
	w.jobContextsMux.RUnlock()
	if ok {
		cancel()
	}
}

func (w *PipelineWorker) handleRunRequest(msg *nats.Msg) {
	var req RunRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Printf("pipeline worker: failed to parse run request: %v", err)
		return
	}

	ctx := w.createJobContext(req.RunID)
	defer w.releaseJobContext(req.RunID)

	if err := w.processRun(ctx, req); err != nil {
		log.Printf("pipeline worker: run %s failed: %v", req.RunID, err)
		w.publishError(req.RunID, err.Error())
	}
}

func (w *PipelineWorker) processRun(ctx context.Context, req RunRequest) error {
	started := time.Now()
	log.Printf("pipeline worker: starting run %s for batch %s", req.RunID, req.ImportBatchID)

	rows, err := w.rows.LoadDecadePlanRows(ctx, req.ImportBatchID)
	if err != nil {
		return fmt.Errorf("load decade plan rows: %w", err)
	}

	ref, err := w.refdata.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch reference data: %w", err)
	}

	result := w.runner.Run(ctx, req.RunID, rows, ref)
	for _, stageMetrics := range result.Metrics.Stages {
		w.publishStageProgress(req.RunID, stageMetrics)
	}

	for _, pair := range result.Pairs {
		if err := w.dispatcher.Dispatch(ctx, pair); err != nil {
			log.Printf("pipeline worker: dispatch failed for run %s: %v", req.RunID, err)
		}
	}

	if w.db != nil {
		runRow := db.PipelineRunRow{
			RunID:       req.RunID,
			StartedAt:   started,
			FinishedAt:  result.Metrics.FinishedAt,
			Status:      string(result.Metrics.Status),
			InputRows:   result.Metrics.InputRows,
			OutputPairs: result.Metrics.OutputPairs,
			ErrorCount:  result.Metrics.TotalErrors,
		}
		if err := w.db.RecordPipelineRun(ctx, runRow); err != nil {
			log.Printf("pipeline worker: failed to record run audit row: %v", err)
		}
	}

	w.publishComplete(req.RunID, result.Metrics)
	return nil
}

func (w *PipelineWorker) publishStageProgress(runID string, m pipeline.StageMetrics) {
	update := RunProgressUpdate{RunID: runID, Stage: m.Stage, Status: m.Status, Valid: m.Valid, Dropped: m.Dropped, DurationMS: m.DurationMS}
	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("pipeline worker: failed to marshal progress update: %v", err)
		return
	}
	if err := w.nats.Publish(queue.RunProgressSubject(runID), data); err != nil {
		log.Printf("pipeline worker: failed to publish progress: %v", err)
	}
}

func (w *PipelineWorker) publishComplete(runID string, metrics pipeline.RunMetrics) {
	data, err := json.Marshal(metrics)
	if err != nil {
		log.Printf("pipeline worker: failed to marshal run metrics: %v", err)
		return
	}
	if err := w.nats.Publish(queue.RunCompleteSubject(runID), data); err != nil {
		log.Printf("pipeline worker: failed to publish completion: %v", err)
	}
}

func (w *PipelineWorker) publishError(runID, message string) {
	payload, _ := json.Marshal(map[string]string{"runId": runID, "error": message})
	if err := w.nats.Publish(queue.RunErrorSubject(runID), payload); err != nil {
		log.Printf("pipeline worker: failed to publish error: %v", err)
	}
}

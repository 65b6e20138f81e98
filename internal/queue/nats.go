package queue

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Manager handles the NATS connection and messaging the pipeline uses to
// dispatch runs asynchronously and publish per-stage progress.
type Manager struct {
	conn    *nats.Conn
	url     string
	options []nats.Option
}

// NewManager creates a new NATS manager
func NewManager(natsURL string) (*Manager, error) {
	options := []nats.Option{
		nats.Name("APS Scheduler"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Println("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(natsURL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Printf("Connected to NATS at %s", natsURL)

	return &Manager{
		conn:    conn,
		url:     natsURL,
		options: options,
	}, nil
}

// Close closes the NATS connection
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}

// Conn returns the NATS connection
func (m *Manager) Conn() *nats.Conn {
	return m.conn
}

// Publish publishes a message to a subject
func (m *Manager) Publish(subject string, data []byte) error {
	return m.conn.Publish(subject, data)
}

// Subscribe subscribes to a subject with a handler
func (m *Manager) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return m.conn.Subscribe(subject, handler)
}

// QueueSubscribe creates a queue subscriber (load balanced across workers)
func (m *Manager) QueueSubscribe(subject, queue string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return m.conn.QueueSubscribe(subject, queue, handler)
}

// Request sends a request and waits for a response
func (m *Manager) Request(subject string, data []byte, timeout time.Duration) (*nats.Msg, error) {
	return m.conn.Request(subject, data, timeout)
}

// NATS subject patterns for pipeline-run dispatch and progress reporting.
const (
	// SubjectRunStart requests a new pipeline run. Payload is the run's
	// decade-plan batch reference; any worker in QueueGroupRun may pick it up.
	SubjectRunStart = "pipeline.run.start"

	// SubjectRunProgress.{runID} carries one StageMetrics update per
	// completed stage.
	SubjectRunProgress = "pipeline.run.progress.%s"
	// SubjectRunComplete.{runID} carries the final RunMetrics summary.
	SubjectRunComplete = "pipeline.run.complete.%s"
	// SubjectRunError.{runID} carries a FatalError that aborted the run.
	SubjectRunError = "pipeline.run.error.%s"
	// SubjectRunCancel.{runID} requests cooperative cancellation of a
	// running pipeline, honored at the next batch checkpoint.
	SubjectRunCancel = "pipeline.run.cancel.%s"

	// SubjectStagePartition.{runID}.{stage} distributes one
	// (article_nr, machine) partition of a stage's within-stage worker pool.
	SubjectStagePartition = "pipeline.run.stage.%s.%s"

	// QueueGroupRun load-balances pipeline-run dispatch across scheduler
	// worker processes.
	QueueGroupRun = "pipeline-run-workers"
)

// RunProgressSubject returns the progress subject for a run.
func RunProgressSubject(runID string) string {
	return fmt.Sprintf(SubjectRunProgress, runID)
}

// RunCompleteSubject returns the completion subject for a run.
func RunCompleteSubject(runID string) string {
	return fmt.Sprintf(SubjectRunComplete, runID)
}

// RunErrorSubject returns the fatal-error subject for a run.
func RunErrorSubject(runID string) string {
	return fmt.Sprintf(SubjectRunError, runID)
}

// RunCancelSubject returns the cancellation subject for a run.
func RunCancelSubject(runID string) string {
	return fmt.Sprintf(SubjectRunCancel, runID)
}

// StagePartitionSubject returns the subject one (article_nr, machine)
// partition of a stage's worker pool publishes progress to.
func StagePartitionSubject(runID, stage string) string {
	return fmt.Sprintf(SubjectStagePartition, runID, stage)
}

// Package worker runs checkout jobs pulled from the job queue through
// the same order pipeline the HTTP handler uses.
package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos-system/internal/database"
	"pos-system/internal/logger"
	"pos-system/internal/messaging"
	"pos-system/internal/models"
	"pos-system/internal/order"
)

// ResultPublisher reports async checkout outcomes back to submitters
type ResultPublisher interface {
	PublishCheckoutResult(ctx context.Context, result interface{}) error
}

// Checkout is an async checkout worker. It registers itself, heartbeats
// while alive, and consumes checkout jobs with manual acknowledgement.
type Checkout struct {
	name              string
	heartbeatInterval time.Duration

	db        *database.DB
	service   *order.Service
	consumer  *messaging.Consumer
	publisher ResultPublisher
	logger    *logger.Logger

	shutdown chan os.Signal
	done     chan bool
}

// NewCheckout creates a checkout worker
func NewCheckout(name string, heartbeatInterval time.Duration,
	db *database.DB, service *order.Service, consumer *messaging.Consumer,
	publisher ResultPublisher, log *logger.Logger) *Checkout {

	return &Checkout{
		name:              name,
		heartbeatInterval: heartbeatInterval,
		db:                db,
		service:           service,
		consumer:          consumer,
		publisher:         publisher,
		logger:            log,
		shutdown:          make(chan os.Signal, 1),
		done:              make(chan bool, 1),
	}
}

// Start registers the worker and consumes jobs until a shutdown signal
func (w *Checkout) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()

	if err := w.register(ctx, requestID); err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}

	signal.Notify(w.shutdown, syscall.SIGINT, syscall.SIGTERM)

	go w.heartbeatLoop(ctx)

	go func() {
		if err := w.consumer.StartConsuming(ctx, w.handleJob); err != nil {
			w.logger.Error("consumer_failed", "Job consumer failed", requestID, err, nil)
		}
		w.done <- true
	}()

	w.logger.Info("worker_started", fmt.Sprintf("Checkout worker %s started", w.name), requestID, map[string]interface{}{
		"worker_name":        w.name,
		"heartbeat_interval": w.heartbeatInterval.Seconds(),
	})

	select {
	case <-w.shutdown:
		w.logger.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		return w.gracefulShutdown(ctx, requestID)
	case <-w.done:
		return nil
	}
}

// register claims the worker name, refusing to start if another worker
// with the same name is still online.
func (w *Checkout) register(ctx context.Context, requestID string) error {
	var count int
	if err := w.db.QueryRow(ctx, database.CheckWorkerOnlineSQL, w.name).Scan(&count); err != nil {
		return fmt.Errorf("failed to check worker status: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("worker %s is already online", w.name)
	}

	var workerID int64
	if err := w.db.QueryRow(ctx, database.InsertWorkerSQL, w.name, "checkout").Scan(&workerID); err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}

	w.logger.Info("worker_registered", fmt.Sprintf("Worker %s registered", w.name), requestID, map[string]interface{}{
		"worker_id":   workerID,
		"worker_name": w.name,
	})
	return nil
}

// handleJob runs one checkout job. Business failures are final: the
// result is published and the message acknowledged. Infrastructure
// errors are returned so the message is requeued and retried.
func (w *Checkout) handleJob(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	var job models.CheckoutJob
	if err := messaging.ParseMessage(body, &job); err != nil {
		// A payload that cannot be parsed will never succeed; requeueing
		// it would poison the queue.
		w.logger.Error("job_parsing_failed", "Dropping unparseable checkout job", requestID, err, nil)
		return nil
	}

	w.logger.Debug("job_started", fmt.Sprintf("Processing checkout job %s", job.JobID), requestID, map[string]interface{}{
		"job_id":    job.JobID,
		"user_id":   job.Request.UserID,
		"outlet_id": job.Request.OutletID,
	})

	response, err := w.service.CreateOrder(ctx, &job.Request, requestID)
	if err != nil {
		if models.IsCheckoutFailure(err) {
			w.publishResult(ctx, &models.CheckoutResult{
				JobID:     job.JobID,
				Succeeded: false,
				Error:     err.Error(),
				Timestamp: time.Now().UTC(),
			}, requestID)
			w.logger.Info("job_rejected", fmt.Sprintf("Checkout job %s rejected: %v", job.JobID, err), requestID, map[string]interface{}{
				"job_id": job.JobID,
			})
			return nil
		}
		return fmt.Errorf("checkout job %s failed: %w", job.JobID, err)
	}

	w.publishResult(ctx, &models.CheckoutResult{
		JobID:     job.JobID,
		Succeeded: true,
		Response:  response,
		Timestamp: time.Now().UTC(),
	}, requestID)

	if err := w.db.Exec(ctx, database.UpdateWorkerProcessedSQL, 1, w.name); err != nil {
		w.logger.Error("processed_count_failed", "Failed to update processed count", requestID, err, nil)
	}

	w.logger.Debug("job_completed", fmt.Sprintf("Checkout job %s created order %s", job.JobID, response.OrderNumber), requestID, map[string]interface{}{
		"job_id":       job.JobID,
		"order_number": response.OrderNumber,
		"processed_by": w.name,
	})
	return nil
}

func (w *Checkout) publishResult(ctx context.Context, result *models.CheckoutResult, requestID string) {
	if err := w.publisher.PublishCheckoutResult(ctx, result); err != nil {
		// The order itself is already decided; losing the result message
		// must not fail the job.
		w.logger.Error("result_publish_failed", "Failed to publish checkout result", requestID, err, map[string]interface{}{
			"job_id": result.JobID,
		})
	}
}

// heartbeatLoop keeps last_seen fresh while the worker runs
func (w *Checkout) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case <-ticker.C:
			if err := w.db.Exec(ctx, database.UpdateWorkerStatusSQL, "online", w.name); err != nil {
				w.logger.Error("heartbeat_failed", "Failed to send heartbeat", "", err, nil)
			}
		}
	}
}

// gracefulShutdown marks the worker offline and stops consuming
func (w *Checkout) gracefulShutdown(ctx context.Context, requestID string) error {
	if err := w.db.Exec(ctx, database.UpdateWorkerStatusSQL, "offline", w.name); err != nil {
		w.logger.Error("shutdown_failed", "Failed to mark worker offline", requestID, err, nil)
	}

	if w.consumer != nil {
		w.consumer.Close()
	}

	w.logger.Info("graceful_shutdown", "Graceful shutdown completed", requestID, nil)
	return nil
}

package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"pos-system/internal/logger"
	"pos-system/internal/models"
)

// JobPublisher submits checkout jobs to the async queue
type JobPublisher interface {
	PublishCheckoutJob(ctx context.Context, job interface{}, routingKey string) error
}

// Handler exposes the order pipeline over HTTP
type Handler struct {
	service *Service
	jobs    JobPublisher
	logger  *logger.Logger
	health  func(ctx context.Context) bool
}

// NewHandler creates an order handler. The job publisher and health
// function may be nil; async submission then answers 503 and the health
// endpoint always reports healthy.
func NewHandler(service *Service, jobs JobPublisher, log *logger.Logger, health func(ctx context.Context) bool) *Handler {
	return &Handler{
		service: service,
		jobs:    jobs,
		logger:  log,
		health:  health,
	}
}

// CreateOrder handles POST /orders requests
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	if r.Header.Get("Content-Type") != "application/json" {
		h.writeErrorResponse(w, http.StatusBadRequest, "Content-Type must be application/json", requestID)
		return
	}

	var req models.CheckoutRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		h.logger.Error("validation_failed", "Failed to parse request body", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	response, err := h.service.CreateOrder(ctx, &req, requestID)
	if err != nil {
		h.logger.Error("checkout_failed", "Failed to create order", requestID, err, map[string]interface{}{
			"user_id":   req.UserID,
			"outlet_id": req.OutletID,
		})
		h.writeError(w, err, requestID)
		return
	}

	h.writeJSON(w, http.StatusCreated, response, requestID)
}

// SubmitCheckout handles POST /orders/async requests. The cart is
// validated up front, then queued; the worker runs the same pipeline and
// publishes a CheckoutResult with the job id.
func (h *Handler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	if h.jobs == nil {
		h.writeErrorResponse(w, http.StatusServiceUnavailable, "Async checkout is not available", requestID)
		return
	}

	var req models.CheckoutRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", requestID)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, err, requestID)
		return
	}

	job := models.CheckoutJob{
		JobID:   logger.GenerateRequestID(),
		Request: req,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.jobs.PublishCheckoutJob(ctx, &job, "checkout."+req.OrderType); err != nil {
		h.logger.Error("job_submit_failed", "Failed to queue checkout job", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusServiceUnavailable, "Failed to queue checkout", requestID)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.JobID}, requestID)
}

// GetOrder handles GET /orders/{number} requests
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()
	number := r.PathValue("number")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := h.service.OrderByNumber(ctx, number)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, order, requestID)
}

// ListOrders handles GET /orders?user_id= requests
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "user_id query parameter is required", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	orders, err := h.service.OrdersByUser(ctx, userID)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders}, requestID)
}

// CancelOrder handles POST /orders/{number}/cancel requests
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()
	number := r.PathValue("number")

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, err := h.service.CancelOrder(ctx, number, "api", requestID)
	if err != nil {
		h.logger.Error("cancel_failed", "Failed to cancel order", requestID, err, map[string]interface{}{
			"order_number": number,
		})
		h.writeError(w, err, requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, order, requestID)
}

// PaymentNotification handles POST /payments/notification callbacks from
// the gateway. The gateway retries on non-2xx, so only infrastructure
// errors return one.
func (h *Handler) PaymentNotification(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GenerateRequestID()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Failed to read notification body", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := h.service.HandlePaymentNotification(ctx, payload, requestID); err != nil {
		h.logger.Error("notification_failed", "Failed to process payment notification", requestID, err, nil)
		h.writeError(w, err, requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, requestID)
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := h.health == nil || h.health(ctx)

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "order-service",
		"healthy":   healthy,
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		response["status"] = "unhealthy"
	}

	json.NewEncoder(w).Encode(response)
}

// SetupRoutes sets up the HTTP routes
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /orders", h.withLogging(h.CreateOrder))
	mux.HandleFunc("POST /orders/async", h.withLogging(h.SubmitCheckout))
	mux.HandleFunc("GET /orders", h.withLogging(h.ListOrders))
	mux.HandleFunc("GET /orders/{number}", h.withLogging(h.GetOrder))
	mux.HandleFunc("POST /orders/{number}/cancel", h.withLogging(h.CancelOrder))
	mux.HandleFunc("POST /payments/notification", h.withLogging(h.PaymentNotification))
	mux.HandleFunc("GET /health", h.withLogging(h.HealthCheck))

	return mux
}

// writeError maps pipeline errors onto HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, err error, requestID string) {
	var validation *models.ValidationError
	var notFound *models.ReferenceNotFoundError
	var insufficient *models.InsufficientStockError

	switch {
	case errors.As(err, &validation), errors.Is(err, models.ErrInvalidPaymentMethod):
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error(), requestID)
	case errors.As(err, &notFound):
		h.writeErrorResponse(w, http.StatusNotFound, err.Error(), requestID)
	case errors.As(err, &insufficient), errors.Is(err, models.ErrOrderNotCancelable):
		h.writeErrorResponse(w, http.StatusConflict, err.Error(), requestID)
	default:
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
	}
}

// writeErrorResponse writes an error response in JSON format
func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, body interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

// withLogging adds request logging middleware
func (h *Handler) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.GenerateRequestID()

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}
		next(rw, r)

		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/dunamismax/perflab/internal/domain"
	"github.com/dunamismax/perflab/internal/graph"
	"github.com/dunamismax/perflab/internal/queue"
	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 1 << 20

type Server struct {
	logger      *log.Logger
	executor    graphExecutor
	queueClient queue.Enqueuer
	rateLimiter RateLimiter
	tracer      trace.Tracer
	metrics     *metrics
	playground  bool
	mux         *http.ServeMux
}

type graphExecutor interface {
	Execute(ctx context.Context, req graph.Request) *graphql.Result
}

// Options wires the optional parts of the API. Executor is required.
type Options struct {
	Executor    graphExecutor
	Queue       queue.Enqueuer
	RateLimiter RateLimiter
	Tracer      trace.Tracer
	Playground  bool
}

func NewServer(logger *log.Logger, opts Options) (*Server, error) {
	if opts.Executor == nil {
		return nil, errors.New("graphql executor is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Server{
		logger:      logger,
		executor:    opts.Executor,
		queueClient: opts.Queue,
		rateLimiter: opts.RateLimiter,
		tracer:      opts.Tracer,
		metrics:     newMetrics(),
		playground:  opts.Playground,
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /graphql", s.handleGraphQL)
	s.mux.HandleFunc("POST /graphql", s.handleGraphQL)
	s.mux.HandleFunc("PUT /v1/attachments/{id}", s.handleUpsertAttachment)
	s.mux.HandleFunc("DELETE /v1/attachments/{id}", s.handleDeleteAttachment)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	if s.playground {
		s.mux.Handle("GET /playground", playground.Handler("perflab", "/graphql"))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	req, err := parseGraphQLRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	start := time.Now()
	result := s.executor.Execute(r.Context(), req)

	outcome := "ok"
	if result.HasErrors() {
		outcome = "error"
		for _, gqlErr := range result.Errors {
			s.logger.Printf("graphql error request_id=%s operation=%s err=%s", RequestIDFromContext(r.Context()), req.OperationName, gqlErr.Message)
		}
	}
	s.metrics.observeGraphQL(req.OperationName, outcome, time.Since(start))

	writeJSON(w, http.StatusOK, result)
}

func parseGraphQLRequest(r *http.Request) (graph.Request, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req := graph.Request{
			Query:         q.Get("query"),
			OperationName: q.Get("operationName"),
		}
		if raw := q.Get("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				return graph.Request{}, fmt.Errorf("invalid variables: %w", err)
			}
		}
		return req, nil
	}

	var req graph.Request
	if err := decodeJSON(r, &req); err != nil {
		return graph.Request{}, err
	}
	return req, nil
}

type upsertAttachmentRequest struct {
	AttachedFile string                `json:"attached_file"`
	MimeType     string                `json:"mime_type"`
	Title        string                `json:"title"`
	Metadata     *domain.ImageMetadata `json:"metadata"`
	CallbackURL  string                `json:"callback_url"`
}

func (s *Server) handleUpsertAttachment(w http.ResponseWriter, r *http.Request) {
	attachmentID, err := attachmentIDFromPath(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req upsertAttachmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	att := domain.Attachment{
		ID:           attachmentID,
		AttachedFile: strings.TrimSpace(req.AttachedFile),
		MimeType:     strings.TrimSpace(req.MimeType),
		Title:        req.Title,
		Metadata:     req.Metadata,
	}
	if err := att.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	if err := validateCallbackURL(req.CallbackURL); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if s.queueClient == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "attachment ingestion is unavailable"})
		return
	}

	requestID := RequestIDFromContext(r.Context())
	taskInfo, err := s.queueClient.EnqueueUpsertAttachment(r.Context(), queue.UpsertAttachmentPayload{
		RequestID:   requestID,
		Attachment:  att,
		CallbackURL: strings.TrimSpace(req.CallbackURL),
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Printf("enqueue upsert failed attachment_id=%d request_id=%s err=%v", attachmentID, requestID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue attachment"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue, queue.TypeUpsertAttachment).Inc()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"attachment_id": attachmentID,
		"request_id":    requestID,
		"queue":         taskInfo.Queue,
		"task_id":       taskInfo.ID,
		"state":         taskInfo.State.String(),
	})
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	attachmentID, err := attachmentIDFromPath(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	callbackURL := strings.TrimSpace(r.URL.Query().Get("callback_url"))
	if err := validateCallbackURL(callbackURL); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if s.queueClient == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "attachment ingestion is unavailable"})
		return
	}

	requestID := RequestIDFromContext(r.Context())
	taskInfo, err := s.queueClient.EnqueueDeleteAttachment(r.Context(), queue.DeleteAttachmentPayload{
		RequestID:    requestID,
		AttachmentID: attachmentID,
		CallbackURL:  callbackURL,
		RequestedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Printf("enqueue delete failed attachment_id=%d request_id=%s err=%v", attachmentID, requestID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue attachment delete"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue, queue.TypeDeleteAttachment).Inc()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"attachment_id": attachmentID,
		"request_id":    requestID,
		"queue":         taskInfo.Queue,
		"task_id":       taskInfo.ID,
		"state":         taskInfo.State.String(),
	})
}

func attachmentIDFromPath(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	attachmentID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || attachmentID <= 0 {
		return 0, fmt.Errorf("invalid attachment id %q", raw)
	}
	return attachmentID, nil
}

func validateCallbackURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("callback_url must be an absolute http(s) URL")
	}
	return nil
}

// decodeJSON tolerates unknown fields: attachment metadata carries
// host-specific keys that are not modelled here.
func decodeJSON(r *http.Request, into any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scavenger/core"
	"scavenger/observability"
	"scavenger/storage/eventlog"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeInvalidNonce   = -32010
	codeRateLimited    = -32020
	codeModulePaused   = -32030
	codeCustodyError   = -32050
)

// EventArchive serves archived events to scavenger_events.
type EventArchive interface {
	List(ctx context.Context, filter eventlog.Filter) ([]eventlog.Record, error)
}

// Config tunes the HTTP surface.
type Config struct {
	RateLimitPerSecond float64
	RateLimitBurst     int
	MaxBodyBytes       int64
	// AdminSecret verifies HS256 bearer tokens on host_pause and host_resume.
	AdminSecret string
}

type handlerFunc func(s *Server, r *http.Request, req *RPCRequest) (interface{}, *RPCError)

type Server struct {
	runtime *core.Runtime
	archive EventArchive
	hub     *Hub
	limiter *rateLimiter
	admin   *adminAuth
	logger  *slog.Logger
	maxBody int64
}

// NewServer wires the JSON-RPC surface for rt. archive may be nil.
func NewServer(rt *core.Runtime, archive EventArchive, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = maxRequestBytes
	}
	s := &Server{
		runtime: rt,
		archive: archive,
		hub:     NewHub(logger),
		limiter: newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		admin:   newAdminAuth(cfg.AdminSecret),
		logger:  logger,
		maxBody: maxBody,
	}
	rt.Subscribe(s.hub)
	return s
}

// Hub returns the websocket event hub fed by the runtime.
func (s *Server) Hub() *Hub { return s.hub }

// Router returns the HTTP handler serving JSON-RPC on "/", the event stream on
// "/ws", health on "/healthz" and Prometheus metrics on "/metrics".
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleEventsWS)
	r.With(s.limiter.Middleware).Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "jsonrpc"))
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) httpStatus() int {
	if e.status > 0 {
		return e.status
	}
	return http.StatusBadRequest
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, s.maxBody)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.maxBody)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	module := moduleOf(req.Method)
	handler, ok := handlers[req.Method]
	if !ok {
		observability.ModuleMetrics().Observe(module, req.Method, http.StatusNotFound, time.Since(started))
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("rpc.method", req.Method), attribute.String("rpc.module", module))
	result, rpcErr := handler(s, r, req)
	if rpcErr != nil {
		status := rpcErr.httpStatus()
		span.SetAttributes(attribute.Int("rpc.error_code", rpcErr.Code))
		if status >= http.StatusInternalServerError {
			span.SetStatus(otelcodes.Error, rpcErr.Message)
			s.logger.Error("rpc request failed",
				slog.String("method", req.Method),
				slog.String("request_id", w.Header().Get(requestIDHeader)),
				slog.String("trace_id", traceID(span)),
				slog.Any("data", rpcErr.Data))
		}
		if rpcErr.Code == codeRateLimited {
			observability.ModuleMetrics().RecordThrottle(module, "quota_exceeded")
		}
		observability.ModuleMetrics().Observe(module, req.Method, status, time.Since(started))
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	observability.ModuleMetrics().Observe(module, req.Method, http.StatusOK, time.Since(started))
	writeResult(w, req.ID, result)
}

func traceID(span trace.Span) string {
	sc := span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func moduleOf(method string) string {
	if idx := strings.IndexByte(method, '_'); idx > 0 {
		return method[:idx]
	}
	return "unknown"
}

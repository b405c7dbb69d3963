// Package httpapi wires the gateway's HTTP surface to the domain managers:
// route dispatch, capability-scope enforcement and the three chat delivery
// transports.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"pkt.systems/pslog"

	"github.com/agnt-gg/slop-sub000/api"
	"github.com/agnt-gg/slop-sub000/internal/chat"
	"github.com/agnt-gg/slop-sub000/internal/clock"
	"github.com/agnt-gg/slop-sub000/internal/memstore"
	"github.com/agnt-gg/slop-sub000/internal/pay"
	"github.com/agnt-gg/slop-sub000/internal/resstore"
	"github.com/agnt-gg/slop-sub000/internal/scope"
	"github.com/agnt-gg/slop-sub000/internal/svcfields"
	"github.com/agnt-gg/slop-sub000/internal/tools"
	"github.com/agnt-gg/slop-sub000/internal/uuidv7"
)

const headerScope = "X-SLOP-SCOPE"
const scopeQueryParam = "scope"

const defaultJSONMaxBytes = 1 << 20

// Error codes of the standard envelope.
const (
	codeInvalidRequest   = "INVALID_REQUEST"
	codeInvalidJSON      = "INVALID_JSON"
	codeNotFound         = "NOT_FOUND"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeToolError        = "TOOL_ERROR"
	codeStreamError      = "STREAM_ERROR"
	codeGenerationError  = "GENERATION_ERROR"
	codeSearchError      = "SEARCH_ERROR"
	codeInternalError    = "INTERNAL_ERROR"
)

// Handler wires HTTP endpoints to the domain managers.
type Handler struct {
	chat      *chat.Manager
	tools     *tools.Registry
	memory    *memstore.Store
	resources *resstore.Store
	ledger    *pay.Ledger

	models []string

	logger             pslog.Logger
	clock              clock.Clock
	tracer             trace.Tracer
	httpTracingEnabled bool
	jsonMaxBytes       int64

	routes []route
}

// Config carries the handler's collaborators. Chat, Tools, Memory,
// Resources and Ledger are required.
type Config struct {
	Chat      *chat.Manager
	Tools     *tools.Registry
	Memory    *memstore.Store
	Resources *resstore.Store
	Ledger    *pay.Ledger

	Models []string

	Logger             pslog.Logger
	Clock              clock.Clock
	HTTPTracingEnabled bool
	JSONMaxBytes       int64
}

// New returns a ready handler.
func New(cfg Config) (*Handler, error) {
	switch {
	case cfg.Chat == nil:
		return nil, errors.New("httpapi: chat manager is required")
	case cfg.Tools == nil:
		return nil, errors.New("httpapi: tools registry is required")
	case cfg.Memory == nil:
		return nil, errors.New("httpapi: memory store is required")
	case cfg.Resources == nil:
		return nil, errors.New("httpapi: resource store is required")
	case cfg.Ledger == nil:
		return nil, errors.New("httpapi: ledger is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	jsonMax := cfg.JSONMaxBytes
	if jsonMax <= 0 {
		jsonMax = defaultJSONMaxBytes
	}
	h := &Handler{
		chat:               cfg.Chat,
		tools:              cfg.Tools,
		memory:             cfg.Memory,
		resources:          cfg.Resources,
		ledger:             cfg.Ledger,
		models:             cfg.Models,
		logger:             logger,
		clock:              clk,
		tracer:             otel.Tracer("slopd/httpapi"),
		httpTracingEnabled: cfg.HTTPTracingEnabled,
		jsonMaxBytes:       jsonMax,
	}
	h.routes = h.buildRoutes()
	return h, nil
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func routerSys(operation string) string {
	parts := strings.FieldsFunc(operation, func(r rune) bool {
		switch r {
		case '.', '/', '-', '_':
			return true
		}
		return false
	})
	if len(parts) == 0 {
		return "api.http.router"
	}
	return "api.http.router." + strings.Join(parts, ".")
}

func (h *Handler) wrap(operation string, fn handlerFunc) http.Handler {
	sys := routerSys(operation)
	httpSpanName := "slop.http." + operation
	txSpanName := "slop.tx." + operation

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := h.clock.Now()
		ctx := r.Context()
		reqID := uuidv7.NewString()
		instrument := h.httpTracingEnabled
		var span trace.Span
		if instrument {
			ctx, span = h.tracer.Start(ctx, txSpanName,
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attribute.String("slop.sys", sys)),
			)
			span.SetAttributes(
				attribute.String("slop.operation", operation),
				attribute.String("slop.route", r.URL.Path),
			)
			defer span.End()
		} else {
			span = trace.SpanFromContext(ctx)
		}

		logger := svcfields.WithSubsystem(h.logger, sys).With(
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx = pslog.ContextWithLogger(ctx, logger)
		r = r.WithContext(ctx)

		logger.Trace("http.request.start", "remote_addr", r.RemoteAddr)

		if err := fn(w, r); err != nil {
			if instrument {
				span.RecordError(err)
				span.SetStatus(codes.Error, "handler_error")
				var httpErr httpError
				if errors.As(err, &httpErr) {
					span.SetAttributes(
						attribute.String("slop.error_code", httpErr.Code),
						attribute.Int("slop.error_status", httpErr.Status),
					)
				}
			}
			logger.Debug("http.request.error", "elapsed", h.clock.Now().Sub(start), "error", err)
			h.handleError(r.Context(), w, err)
			return
		}
		if instrument {
			span.SetStatus(codes.Ok, "")
		}
		logger.Trace("http.request.complete", "elapsed", h.clock.Now().Sub(start))
	})

	if !h.httpTracingEnabled {
		return handler
	}
	return otelhttp.NewHandler(handler, httpSpanName,
		otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents))
}

type httpError struct {
	Status int
	Code   string
	Detail string
}

func (e httpError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	return e.Code
}

// scopeError is a capability-scope rejection. It is shaped into the
// scope-specific body rather than the standard envelope.
type scopeError struct {
	Required string
}

func (e scopeError) Error() string {
	return fmt.Sprintf("insufficient scope: %s required", e.Required)
}

func errInvalidRequest(detail string) error {
	return httpError{Status: http.StatusBadRequest, Code: codeInvalidRequest, Detail: detail}
}

func errInvalidJSON(err error) error {
	return httpError{Status: http.StatusBadRequest, Code: codeInvalidJSON, Detail: err.Error()}
}

func errNotFound(detail string) error {
	return httpError{Status: http.StatusNotFound, Code: codeNotFound, Detail: detail}
}

func (h *Handler) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := pslog.LoggerFromContext(ctx)
	if logger == nil {
		logger = h.logger
	}
	var scopeErr scopeError
	if errors.As(err, &scopeErr) {
		logger.Debug("http.request.scope_denied", "required", scopeErr.Required)
		h.writeJSON(w, http.StatusForbidden, api.ScopeDeniedResponse{
			Error:     scopeErr.Error(),
			Permitted: false,
		}, nil)
		return
	}
	var httpErr httpError
	if errors.As(err, &httpErr) {
		logger.Debug("http.request.failure",
			"status", httpErr.Status,
			"code", httpErr.Code,
			"detail", httpErr.Detail,
		)
		h.writeJSON(w, httpErr.Status, api.ErrorResponse{Error: api.ErrorDetail{
			Code:    httpErr.Code,
			Message: httpErr.Detail,
			Status:  httpErr.Status,
		}}, nil)
		return
	}
	logger.Error("http.request.internal_error", "error", err)
	h.writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: api.ErrorDetail{
		Code:    codeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
	}}, nil)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any, headers map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("http.response.encode_failed", "error", err)
	}
}

type jsonDecodeOptions struct {
	allowEmpty       bool
	disallowUnknowns bool
}

func decodeJSONBody(body io.Reader, dst any, opts jsonDecodeOptions) error {
	if body == nil {
		if opts.allowEmpty {
			return nil
		}
		return io.EOF
	}
	dec := json.NewDecoder(body)
	if opts.disallowUnknowns {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		if opts.allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unexpected trailing JSON value")
}

func limitedBody(r *http.Request, max int64) io.Reader {
	if r.Body == nil {
		return nil
	}
	return io.LimitReader(r.Body, max)
}

func (h *Handler) decodeRequest(r *http.Request, dst any) error {
	if err := decodeJSONBody(limitedBody(r, h.jsonMaxBytes), dst, jsonDecodeOptions{}); err != nil {
		return errInvalidJSON(err)
	}
	return nil
}

// grantsFromRequest returns the raw comma-separated grant list from the
// scope header, falling back to the scope query parameter for transports
// where custom headers are impractical.
func grantsFromRequest(r *http.Request) string {
	if raw := r.Header.Get(headerScope); raw != "" {
		return raw
	}
	return r.URL.Query().Get(scopeQueryParam)
}

// requireScope enforces one required scope against the request's grants.
func requireScope(r *http.Request, required string) error {
	if scope.CheckPermission(required, grantsFromRequest(r)) {
		return nil
	}
	return scopeError{Required: required}
}

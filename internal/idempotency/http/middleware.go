// Package http provides the idempotency middleware and record management handlers.
package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/exactly-once/internal/errors"
	"github.com/allisson/exactly-once/internal/httputil"
	"github.com/allisson/exactly-once/internal/idempotency/domain"
	"github.com/allisson/exactly-once/internal/idempotency/usecase"
)

// Response headers set by the middleware.
const (
	HeaderIdempotencyKey    = "X-Idempotency-Key"
	HeaderIdempotencyStatus = "X-Idempotency-Status"
)

// X-Idempotency-Status values.
const (
	StatusMiss       = "miss"
	StatusHit        = "hit"
	StatusFailed     = "failed"
	StatusInProgress = "in_progress"
)

// replayTimeoutSeconds is the nominal operation timeout recorded with cached
// HTTP responses; the actual request lifetime is governed by the server.
const replayTimeoutSeconds = 30

// MiddlewareConfig holds the idempotency middleware tunables.
type MiddlewareConfig struct {
	// Header is the request header carrying the client idempotency key.
	Header string
	// Service scopes cached responses in the deterministic key namespace.
	Service string
	// TTL is how long cached responses are replayable.
	TTL time.Duration
	// RetryAfter is the Retry-After hint returned for in-flight duplicates.
	RetryAfter time.Duration
}

func (c *MiddlewareConfig) withDefaults() {
	if c.Header == "" {
		c.Header = "Idempotency-Key"
	}
	if c.Service == "" {
		c.Service = "trading-api"
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.RetryAfter <= 0 {
		c.RetryAfter = 1 * time.Second
	}
}

// responseRecorder buffers the response so it can be cached after the handler runs.
type responseRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Middleware makes POST/PUT/PATCH requests idempotent when the client supplies
// an idempotency key header. The first request executes and its response is
// cached through the store; duplicates replay the cached status, headers and
// body verbatim. A duplicate arriving while the first request is still running
// gets 409 with a Retry-After hint.
func Middleware(store usecase.Store, config MiddlewareConfig, logger *slog.Logger) gin.HandlerFunc {
	config.withDefaults()

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		clientKey := c.GetHeader(config.Header)
		if clientKey == "" {
			c.Next()
			return
		}

		req, err := buildRequest(c, clientKey, config)
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Header(HeaderIdempotencyKey, req.IdempotencyKey)

		record, isNew, err := store.CheckAndCreate(c.Request.Context(), req, config.TTL)
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		if !isNew {
			replay(c, record, config, logger)
			return
		}

		c.Header(HeaderIdempotencyStatus, StatusMiss)

		recorder := &responseRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = recorder
		c.Next()

		cacheResponse(c, store, req.IdempotencyKey, recorder, config, logger)
	}
}

// buildRequest derives the stored idempotency request from the client key
// scoped by method and route, so the same key on different endpoints never
// collides.
func buildRequest(c *gin.Context, clientKey string, config MiddlewareConfig) (*domain.Request, error) {
	payload := map[string]any{
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"key":    clientKey,
	}

	key, err := domain.NewKey(domain.OperationHTTPRequest, config.Service, payload, nil)
	if err != nil {
		return nil, err
	}
	return domain.NewRequest(key, payload, c.ClientIP(), replayTimeoutSeconds)
}

// replay serves a duplicate request from the stored record.
func replay(c *gin.Context, record *domain.Record, config MiddlewareConfig, logger *slog.Logger) {
	switch record.Status {
	case domain.StatusCompleted:
		c.Header(HeaderIdempotencyStatus, StatusHit)
		writeCached(c, record, logger)

	case domain.StatusFailed:
		// Replay the original semantic failure when we cached one; otherwise the
		// failure left no response behind and the client may retry.
		if record.Result != nil {
			c.Header(HeaderIdempotencyStatus, StatusFailed)
			writeCached(c, record, logger)
			return
		}
		c.Header(HeaderIdempotencyStatus, StatusFailed)
		c.AbortWithStatusJSON(http.StatusConflict, httputil.ErrorResponse{
			Error:   "request_failed",
			Message: "The original request failed and left no cached response",
		})

	default:
		// pending or in_progress: the first request is still running.
		c.Header(HeaderIdempotencyStatus, StatusInProgress)
		c.Header("Retry-After", strconv.Itoa(int(config.RetryAfter.Seconds())))
		httputil.HandleErrorGin(c, apperrors.ErrInFlight, logger)
		c.Abort()
	}
}

// writeCached replays the cached status, headers and body verbatim.
func writeCached(c *gin.Context, record *domain.Record, logger *slog.Logger) {
	statusCode := http.StatusOK
	if v, ok := record.Result["status_code"].(float64); ok {
		statusCode = int(v)
	}

	if headers, ok := record.Result["headers"].(map[string]any); ok {
		for name, value := range headers {
			if s, ok := value.(string); ok {
				c.Header(name, s)
			}
		}
	}

	body, _ := record.Result["body"].(string)

	c.Status(statusCode)
	if _, err := c.Writer.WriteString(body); err != nil {
		logger.Error("failed to replay cached response",
			slog.String("idempotency_key", record.IdempotencyKey),
			slog.Any("error", err))
	}
	c.Abort()
}

// cacheResponse persists the handler's response for later replay. Server errors
// are stored as failed so duplicates see the failure rather than a retry storm.
func cacheResponse(
	c *gin.Context,
	store usecase.Store,
	key string,
	recorder *responseRecorder,
	config MiddlewareConfig,
	logger *slog.Logger,
) {
	statusCode := recorder.Status()

	headers := map[string]any{}
	if contentType := recorder.Header().Get("Content-Type"); contentType != "" {
		headers["Content-Type"] = contentType
	}

	result := map[string]any{
		"status_code": statusCode,
		"headers":     headers,
		"body":        recorder.body.String(),
	}

	status := domain.StatusCompleted
	var errMsg *string
	if statusCode >= http.StatusInternalServerError {
		status = domain.StatusFailed
		msg := http.StatusText(statusCode)
		errMsg = &msg
	}

	ttl := config.TTL
	updated, err := store.UpdateStatus(c.Request.Context(), key, status, result, errMsg, &ttl)
	if err != nil {
		logger.Error("failed to cache idempotent response",
			slog.String("idempotency_key", key),
			slog.Any("error", err))
		return
	}
	if !updated {
		logger.Warn("idempotency record vanished before response caching",
			slog.String("idempotency_key", key))
	}
}

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/humetime/backend/internal/auth"
	"github.com/humetime/backend/internal/distribution"
	"go.uber.org/zap"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "humetime_request_id"
)

var errMissingDistributionService = errors.New("distribution service dependency required")

// DistributionAppender validates and persists one distribution record.
type DistributionAppender interface {
	Append(ctx context.Context, request distribution.AppendRequest) (distribution.Record, error)
}

type Dependencies struct {
	DistributionService DistributionAppender
	SecretGate          *auth.SharedSecretGate
	SecretHeader        string
	BackendName         string
	MealNormalizer      *distribution.Normalizer
	Logger              *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.DistributionService == nil {
		return nil, errMissingDistributionService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizer := deps.MealNormalizer
	if normalizer == nil {
		normalizer = distribution.NewNormalizer(distribution.DefaultMealCategories)
	}
	registerJSONFieldNames()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(deps.SecretHeader))

	handler := &httpHandler{
		distributions: deps.DistributionService,
		secretGate:    deps.SecretGate,
		secretHeader:  deps.SecretHeader,
		backendName:   deps.BackendName,
		normalizer:    normalizer,
		logger:        logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/append", handler.requireSharedSecret, handler.handleAppend)

	return router, nil
}

// corsMiddleware admits every origin, method and request header. Credentials are
// allowed, so the origin and the requested headers are echoed rather than answered
// with "*".
func corsMiddleware(extraHeaders ...string) gin.HandlerFunc {
	baseHeaders := []string{"Origin", "Accept", "Authorization", "Content-Type", requestIDHeader}
	for _, header := range extraHeaders {
		if header != "" {
			baseHeaders = append(baseHeaders, header)
		}
	}
	policy := cors.New(cors.Config{
		AllowOriginFunc: func(string) bool { return true },
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions && c.GetHeader("Origin") != "" {
			c.Header("Access-Control-Allow-Headers", allowedRequestHeaders(baseHeaders, c.GetHeader("Access-Control-Request-Headers")))
		}
		policy(c)
	}
}

// allowedRequestHeaders joins the base headers with whatever the preflight asked for.
func allowedRequestHeaders(baseHeaders []string, requested string) string {
	seen := make(map[string]bool, len(baseHeaders))
	allowed := make([]string, 0, len(baseHeaders))
	add := func(header string) {
		header = http.CanonicalHeaderKey(strings.TrimSpace(header))
		if header == "" || seen[header] {
			return
		}
		seen[header] = true
		allowed = append(allowed, header)
	}
	for _, header := range baseHeaders {
		add(header)
	}
	for _, header := range strings.Split(requested, ",") {
		add(header)
	}
	return strings.Join(allowed, ",")
}

type httpHandler struct {
	distributions DistributionAppender
	secretGate    *auth.SharedSecretGate
	secretHeader  string
	backendName   string
	normalizer    *distribution.Normalizer
	logger        *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": h.backendName})
}

func (h *httpHandler) requireSharedSecret(c *gin.Context) {
	if err := h.secretGate.Check(c.GetHeader(h.secretHeader)); err != nil {
		h.logger.Warn("shared secret check failed",
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
		return
	}
	c.Next()
}

func (h *httpHandler) handleAppend(c *gin.Context) {
	var request appendRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Debug("append payload rejected", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, bindingErrorResponse(err, request, h.normalizer))
		return
	}

	record, err := h.distributions.Append(c.Request.Context(), request.toAppendRequest())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, appendResponsePayload{Status: "ok", Appended: record})
}

// writeError maps the distribution error taxonomy onto HTTP status codes.
func (h *httpHandler) writeError(c *gin.Context, err error) {
	var validationErr *distribution.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, validationErrorResponse(validationErr))
	case errors.Is(err, distribution.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
	default:
		h.logger.Error("append failed",
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	}
}

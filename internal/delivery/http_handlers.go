package delivery

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"gaextractor/internal/domain"
	"gaextractor/internal/usecase"
	"gaextractor/pkg/logger"
	"gaextractor/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handles HTTP requests
type HTTPHandlers struct {
	extraction *usecase.ExtractionService
	accounts   domain.AccountRepository
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// creates new HTTP handlers
func NewHTTPHandlers(
	extraction *usecase.ExtractionService,
	accounts domain.AccountRepository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *HTTPHandlers {
	return &HTTPHandlers{
		extraction: extraction,
		accounts:   accounts,
		logger:     logger,
		metrics:    metrics,
	}
}

// RunExtraction triggers an extraction run. Optional query parameters scope
// the run: since/until (YYYY-MM-DD), account, dataset.
func (h *HTTPHandlers) RunExtraction(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)

	log := h.logger.WithContext(ctx)
	log.Info("Starting extraction run")

	options := domain.RunOptions{
		Account: c.Query("account"),
		Dataset: c.Query("dataset"),
	}

	for name, target := range map[string]**time.Time{
		"since": &options.Since,
		"until": &options.Until,
	} {
		value := c.Query(name)
		if value == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02", value)
		if err != nil {
			h.metrics.RecordHTTPRequest("POST", "/extract/run", "400", time.Since(start))
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      "Invalid date format",
				"message":    name + " must be in YYYY-MM-DD format",
				"request_id": requestID,
			})
			return
		}
		*target = &parsed
	}

	status, err := h.extraction.Run(ctx, options)
	if err != nil {
		code := errorStatusCode(err)
		h.metrics.RecordHTTPRequest("POST", "/extract/run", strconv.Itoa(code), time.Since(start))
		log.WithError(err).Error("Extraction run failed")
		c.JSON(code, gin.H{
			"error":      "Extraction run failed",
			"message":    err.Error(),
			"import":     status,
			"request_id": requestID,
		})
		return
	}

	h.metrics.RecordHTTPRequest("POST", "/extract/run", "200", time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"import":     status,
		"request_id": requestID,
	})
}

// ListProfiles lists every profile reachable with an account's credentials.
func (h *HTTPHandlers) ListProfiles(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)

	accountID := c.Query("account")
	if accountID == "" {
		h.metrics.RecordHTTPRequest("GET", "/profiles", "400", time.Since(start))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Missing required parameter",
			"message":    "account parameter is required",
			"request_id": requestID,
		})
		return
	}

	profiles, err := h.extraction.ListProfiles(ctx, accountID)
	if err != nil {
		code := errorStatusCode(err)
		h.metrics.RecordHTTPRequest("GET", "/profiles", strconv.Itoa(code), time.Since(start))
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list profiles")
		c.JSON(code, gin.H{
			"error":      "Failed to list profiles",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	h.metrics.RecordHTTPRequest("GET", "/profiles", "200", time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"profiles":   profiles,
		"request_id": requestID,
	})
}

// GetAccounts returns the configured accounts; token fields are never
// serialized.
func (h *HTTPHandlers) GetAccounts(c *gin.Context) {
	start := time.Now()
	h.metrics.IncHTTPRequestsInFlight()
	defer h.metrics.DecHTTPRequestsInFlight()

	requestID := uuid.New().String()
	ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)

	accounts, err := h.accounts.ListAccounts(ctx)
	if err != nil {
		h.metrics.RecordHTTPRequest("GET", "/accounts", "500", time.Since(start))
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list accounts")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to list accounts",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	h.metrics.RecordHTTPRequest("GET", "/accounts", "200", time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"accounts":   accounts,
		"request_id": requestID,
	})
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	h.metrics.RecordHTTPRequest("GET", "/health", "200", 0)

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "ga-extractor",
	})
}

func errorStatusCode(err error) int {
	e, ok := domain.AsExtractionError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindBadRequest:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbiddenPermanent, domain.KindForbiddenTransient:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gaextractor/internal/domain"
	"gaextractor/internal/usecase"
	"gaextractor/pkg/logger"
	"gaextractor/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var (
	testLogger  = logger.New("fatal")
	testMetrics = metrics.New()
)

type stubAccountRepo struct{}

func (stubAccountRepo) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return nil, nil
}

func (stubAccountRepo) GetAccountBy(ctx context.Context, key, value string) (*domain.Account, error) {
	return nil, nil
}

func (stubAccountRepo) SaveTokens(ctx context.Context, accountID string, tokens domain.TokenPair) error {
	return nil
}

type stubReportAPI struct{}

func (stubReportAPI) SetCredentials(tokens domain.TokenPair) {}

func (stubReportAPI) Fetch(ctx context.Context, query domain.ReportQuery) (*domain.FetchResult, error) {
	return &domain.FetchResult{}, nil
}

func (stubReportAPI) ListAllProfiles(ctx context.Context, accountFilter string) (map[string]map[string][]domain.Profile, *domain.TokenPair, error) {
	return nil, nil, nil
}

type stubSink struct{}

func (stubSink) BucketExists(ctx context.Context, bucketID string) (bool, error) { return true, nil }

func (stubSink) CreateBucket(ctx context.Context, name, stage, description string) (string, error) {
	return stage + ".c-" + name, nil
}

func (stubSink) TableExists(ctx context.Context, tableID string) (bool, error) { return false, nil }

func (stubSink) UploadTable(ctx context.Context, csvPath, tableID, primaryKey string, incremental bool) error {
	return nil
}

func newTestHandlers(t *testing.T) *HTTPHandlers {
	t.Helper()
	gin.SetMode(gin.TestMode)

	writer := usecase.NewTableWriter(stubSink{}, t.TempDir(), testLogger, testMetrics)
	extraction := usecase.NewExtractionService(
		stubReportAPI{}, stubAccountRepo{}, stubSink{}, usecase.NewExtractionPlanner(),
		writer, testLogger, testMetrics, "ga-extractor")

	return NewHTTPHandlers(extraction, stubAccountRepo{}, testLogger, testMetrics)
}

func runExtractionRequest(t *testing.T, handlers *HTTPHandlers, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, target, nil)
	handlers.RunExtraction(c)
	return w
}

func requestCount(statusCode string) float64 {
	return testutil.ToFloat64(testMetrics.HTTPRequestsTotal.WithLabelValues("POST", "/extract/run", statusCode))
}

func TestRunExtractionInvalidDate(t *testing.T) {
	handlers := newTestHandlers(t)
	before := requestCount("400")

	w := runExtractionRequest(t, handlers, "/api/v1/extract/run?since=not-a-date")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "YYYY-MM-DD")

	// error outcomes label the counter with the numeric code, like successes
	require.Equal(t, before+1, requestCount("400"))
}

func TestRunExtractionUnknownAccount(t *testing.T) {
	handlers := newTestHandlers(t)
	before := requestCount("404")

	w := runExtractionRequest(t, handlers, "/api/v1/extract/run?account=nope")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "does not exist")
	require.Equal(t, before+1, requestCount("404"))
}

func TestRunExtractionEmptyRun(t *testing.T) {
	handlers := newTestHandlers(t)
	before := requestCount("200")

	w := runExtractionRequest(t, handlers, "/api/v1/extract/run")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "import")
	require.Equal(t, before+1, requestCount("200"))
}

func TestErrorStatusCodes(t *testing.T) {
	cases := map[int]error{
		http.StatusNotFound:            domain.NewError(domain.KindNotFound, "missing"),
		http.StatusBadRequest:          domain.NewError(domain.KindBadRequest, "bad"),
		http.StatusUnauthorized:        domain.NewError(domain.KindUnauthorized, "who"),
		http.StatusForbidden:           domain.NewError(domain.KindForbiddenPermanent, "no"),
		http.StatusInternalServerError: context.DeadlineExceeded,
	}
	for want, err := range cases {
		require.Equal(t, want, errorStatusCode(err), "error %v", err)
	}
}

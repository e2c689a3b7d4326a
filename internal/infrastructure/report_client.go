package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gaextractor/internal/domain"
	"gaextractor/pkg/logger"
	"gaextractor/pkg/metrics"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// ReportClientConfig carries the remote API endpoints and retry knobs.
type ReportClientConfig struct {
	BaseURL           string
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string
	PageSize          int
	BackoffAttempts   int
	BackoffBase       time.Duration
	Timeout           time.Duration
	RateLimit         int
}

// implements domain.ReportAPI against the v3-style reporting API
type ReportClient struct {
	http        *resty.Client
	config      ReportClientConfig
	token       domain.TokenPair
	rateLimiter *rate.Limiter
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

// 403 reasons that no amount of retrying will fix.
var permanentReasons = map[string]bool{
	"insufficientPermissions":                true,
	"dailyLimitExceeded":                     true,
	"usageLimits.userRateLimitExceededUnreg": true,
}

func NewReportClient(config ReportClientConfig, logger *logger.Logger, metrics *metrics.Metrics) *ReportClient {
	if config.PageSize <= 0 {
		config.PageSize = 5000
	}
	if config.BackoffAttempts <= 0 {
		config.BackoffAttempts = 7
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 10
	}

	client := resty.New()
	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}

	return &ReportClient{
		http:        client,
		config:      config,
		rateLimiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit),
		logger:      logger,
		metrics:     metrics,
	}
}

// SetCredentials installs the token pair used for subsequent calls. Jobs of
// one account run strictly sequentially, so no locking is needed here.
func (c *ReportClient) SetCredentials(token domain.TokenPair) {
	c.token = token
}

// Fetch runs one data query against the reporting API and maps the response
// into records plus paging state. If the access token had to be refreshed the
// new pair rides along in the result for the caller to persist. A refresh
// followed by a failed retry still surfaces the pair, in a partial result
// next to the error; dropping it would leave a rotated-out refresh token in
// the store.
func (c *ReportClient) Fetch(ctx context.Context, query domain.ReportQuery) (*domain.FetchResult, error) {
	sort := query.Sort
	if sort == "" {
		sort = "ga:date"
	}
	startIndex := query.StartIndex
	if startIndex <= 0 {
		startIndex = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = c.config.PageSize
	}

	params := map[string]string{
		"ids": "ga:" + query.ProfileID,
		// an empty dimension list is sent as an empty string, not omitted
		"dimensions":    prefixNames(query.Dimensions),
		"metrics":       prefixNames(query.Metrics),
		"start-date":    query.DateFrom,
		"end-date":      query.DateTo,
		"sort":          sort,
		"start-index":   strconv.Itoa(startIndex),
		"max-results":   strconv.Itoa(pageSize),
		"samplingLevel": "HIGHER_PRECISION",
		"output":        "json",
	}
	if filter := CompileFilter(query.Filter); filter != "" {
		params["filters"] = filter
	}

	resp, refreshed, err := c.get(ctx, "data", "/data/ga", params)
	if err != nil {
		if refreshed != nil {
			return &domain.FetchResult{RefreshedToken: refreshed}, err
		}
		return nil, err
	}

	var raw rawReport
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return &domain.FetchResult{RefreshedToken: refreshed}, domain.WrapError(domain.KindServiceUnavailable, err, "failed to decode report response")
	}

	records, paging := mapReport(&raw)

	return &domain.FetchResult{
		Records:        records,
		Paging:         paging,
		RefreshedToken: refreshed,
	}, nil
}

// ListAllProfiles aggregates the three nested listing calls: accounts, web
// properties, profiles. A permission failure on one web property prunes just
// that branch instead of failing the whole listing. A token refresh during
// any of the calls is returned alongside the listing, success or not, for
// the caller to persist.
func (c *ReportClient) ListAllProfiles(ctx context.Context, accountFilter string) (map[string]map[string][]domain.Profile, *domain.TokenPair, error) {
	var refreshed *domain.TokenPair
	keepRefresh := func(pair *domain.TokenPair) {
		if pair != nil {
			refreshed = pair
		}
	}

	accounts, pair, err := c.listItems(ctx, "accounts", "/management/accounts", map[string]string{
		"start-index": "1",
		"max-results": "1000",
	})
	keepRefresh(pair)
	if err != nil {
		return nil, refreshed, err
	}

	profiles := make(map[string]map[string][]domain.Profile)

	for _, account := range accounts {
		if accountFilter != "" && account.ID != accountFilter {
			continue
		}

		properties, pair, err := c.listItems(ctx, "webproperties",
			fmt.Sprintf("/management/accounts/%s/webproperties", account.ID),
			map[string]string{
				"start-index": "1",
				"max-results": "1000",
				"quotaUser":   account.ID,
			})
		keepRefresh(pair)
		if err != nil {
			if isForbidden(err) {
				c.logger.WithError(err).WithField("account", account.ID).Warn("No access to web properties, skipping")
				continue
			}
			return nil, refreshed, err
		}

		for _, property := range properties {
			items, pair, err := c.listItems(ctx, "profiles",
				fmt.Sprintf("/management/accounts/%s/webproperties/%s/profiles", account.ID, property.ID),
				map[string]string{
					"start-index": "1",
					"max-results": "5000",
					"quotaUser":   account.ID,
				})
			keepRefresh(pair)
			if err != nil {
				if isForbidden(err) {
					c.logger.WithError(err).WithField("web_property", property.ID).Warn("No access to profiles, skipping")
					continue
				}
				return nil, refreshed, err
			}
			if len(items) == 0 {
				continue
			}

			if profiles[account.Name] == nil {
				profiles[account.Name] = make(map[string][]domain.Profile)
			}
			for _, item := range items {
				profiles[account.Name][property.Name] = append(profiles[account.Name][property.Name], domain.Profile{
					GoogleID:        item.ID,
					Name:            item.Name,
					WebPropertyID:   property.ID,
					WebPropertyName: property.Name,
					AccountID:       account.ID,
					AccountName:     account.Name,
				})
			}
		}
	}

	return profiles, refreshed, nil
}

type listItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *ReportClient) listItems(ctx context.Context, endpoint, path string, params map[string]string) ([]listItem, *domain.TokenPair, error) {
	resp, refreshed, err := c.get(ctx, endpoint, path, params)
	if err != nil {
		return nil, refreshed, err
	}

	var result struct {
		Items []listItem `json:"items"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, refreshed, domain.WrapError(domain.KindServiceUnavailable, err, "failed to decode %s listing", endpoint)
	}

	return result.Items, refreshed, nil
}

// get performs one authorized GET with rate limiting, classified error
// handling, a single mid-call token refresh on 401, and bounded exponential
// backoff on transient failures.
func (c *ReportClient) get(ctx context.Context, endpoint, path string, params map[string]string) (*resty.Response, *domain.TokenPair, error) {
	var refreshed *domain.TokenPair

	for attempt := 0; attempt < c.config.BackoffAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, refreshed, fmt.Errorf("rate limit wait interrupted: %w", err)
		}

		start := time.Now()
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Accept", "application/json").
			SetAuthToken(c.token.AccessToken).
			SetQueryParams(params).
			Get(c.config.BaseURL + path)
		duration := time.Since(start)

		if err != nil {
			c.metrics.RecordExternalAPIFailure(endpoint, "network_error")
			if attempt == c.config.BackoffAttempts-1 {
				return nil, refreshed, domain.WrapError(domain.KindServiceUnavailable, err, "reporting API unreachable")
			}
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, refreshed, err
			}
			continue
		}

		code := resp.StatusCode()
		switch {
		case code == http.StatusOK:
			c.metrics.RecordExternalAPICall(endpoint, "success", duration)
			return resp, refreshed, nil

		case code == http.StatusUnauthorized:
			if refreshed == nil {
				pair, err := c.refreshAccessToken(ctx)
				if err != nil {
					c.metrics.RecordExternalAPIFailure(endpoint, "unauthorized")
					return nil, nil, err
				}
				c.token = pair
				refreshed = &pair
				continue
			}
			c.metrics.RecordExternalAPIFailure(endpoint, "unauthorized")
			return nil, refreshed, domain.NewError(domain.KindUnauthorized, "expired or wrong credentials, please reauthorize")

		case code == http.StatusBadRequest:
			c.metrics.RecordExternalAPIFailure(endpoint, "bad_request")
			return nil, refreshed, domain.NewError(domain.KindBadRequest, "reporting API rejected the query: %s", apiErrorMessage(resp.Body()))

		case code == http.StatusForbidden:
			reason := apiErrorReason(resp.Body())
			if permanentReasons[reason] || strings.EqualFold(reason, "forbidden") {
				c.metrics.RecordExternalAPIFailure(endpoint, "forbidden")
				return nil, refreshed, domain.NewError(domain.KindForbiddenPermanent, "access forbidden: %s", reason)
			}
			c.metrics.RecordExternalAPIFailure(endpoint, "rate_limited")
			if attempt == c.config.BackoffAttempts-1 {
				return nil, refreshed, domain.NewError(domain.KindForbiddenTransient, "rate limited after %d attempts: %s", c.config.BackoffAttempts, reason)
			}

		case code == http.StatusTooManyRequests:
			c.metrics.RecordExternalAPIFailure(endpoint, "rate_limited")
			if attempt == c.config.BackoffAttempts-1 {
				return nil, refreshed, domain.NewError(domain.KindForbiddenTransient, "rate limited after %d attempts", c.config.BackoffAttempts)
			}

		case code >= http.StatusInternalServerError:
			c.metrics.RecordExternalAPIFailure(endpoint, fmt.Sprintf("error_%d", code))
			if attempt == c.config.BackoffAttempts-1 {
				return nil, refreshed, domain.NewError(domain.KindServiceUnavailable, "reporting API error %d after %d attempts: %s", code, c.config.BackoffAttempts, apiErrorMessage(resp.Body()))
			}

		default:
			c.metrics.RecordExternalAPIFailure(endpoint, fmt.Sprintf("error_%d", code))
			return nil, refreshed, domain.NewError(domain.KindServiceUnavailable, "unexpected reporting API status %d", code)
		}

		if err := c.backoff(ctx, attempt); err != nil {
			return nil, refreshed, err
		}
	}

	return nil, refreshed, domain.NewError(domain.KindServiceUnavailable, "reporting API retries exhausted")
}

func (c *ReportClient) refreshAccessToken(ctx context.Context) (domain.TokenPair, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     c.config.OAuthClientID,
			"client_secret": c.config.OAuthClientSecret,
			"refresh_token": c.token.RefreshToken,
			"grant_type":    "refresh_token",
		}).
		Post(c.config.OAuthTokenURL)
	if err != nil {
		return domain.TokenPair{}, domain.WrapError(domain.KindUnauthorized, err, "token refresh failed")
	}
	if resp.StatusCode() != http.StatusOK {
		return domain.TokenPair{}, domain.NewError(domain.KindUnauthorized, "token refresh rejected with status %d", resp.StatusCode())
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(resp.Body(), &token); err != nil {
		return domain.TokenPair{}, domain.WrapError(domain.KindUnauthorized, err, "failed to decode token response")
	}
	if token.AccessToken == "" {
		return domain.TokenPair{}, domain.NewError(domain.KindUnauthorized, "token refresh returned no access token")
	}

	// the provider may not rotate the refresh token
	if token.RefreshToken == "" {
		token.RefreshToken = c.token.RefreshToken
	}

	c.logger.Info("Refreshed access token")
	return domain.TokenPair{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}, nil
}

func (c *ReportClient) backoff(ctx context.Context, attempt int) error {
	delay := c.config.BackoffBase * (1 << attempt)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func prefixNames(names []string) string {
	if len(names) == 0 {
		return ""
	}
	prefixed := make([]string, len(names))
	for i, name := range names {
		prefixed[i] = "ga:" + name
	}
	return strings.Join(prefixed, ",")
}

func isForbidden(err error) bool {
	return domain.IsKind(err, domain.KindForbiddenPermanent) || domain.IsKind(err, domain.KindForbiddenTransient)
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

func apiErrorReason(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if len(e.Error.Errors) > 0 {
		return e.Error.Errors[0].Reason
	}
	return ""
}

func apiErrorMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Message == "" {
		return strings.TrimSpace(string(body))
	}
	return e.Error.Message
}

package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
)

// Field is one named dimension or metric value.
type Field struct {
	Name  string
	Value string
}

// ResultRecord is a single reporting row as returned by the API: dimensions
// and metrics in column header order. Slices instead of maps so iteration
// order is the order the server reported.
type ResultRecord struct {
	Dimensions []Field
	Metrics    []Field
}

// Dimension returns the value of the named dimension, or "" if absent.
func (r ResultRecord) Dimension(name string) string {
	for _, f := range r.Dimensions {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Metric returns the value of the named metric, or "" if absent.
func (r ResultRecord) Metric(name string) string {
	for _, f := range r.Metrics {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// PagingState is the server-reported pagination of one response. It drives
// the next-page request parameters and is never persisted.
type PagingState struct {
	StartIndex   int `json:"startIndex"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalResults int `json:"totalResults"`
}

// Pages returns the total number of pages the response set spans.
func (p PagingState) Pages() int {
	if p.ItemsPerPage <= 0 {
		return 1
	}
	pages := p.TotalResults / p.ItemsPerPage
	if p.TotalResults%p.ItemsPerPage != 0 {
		pages++
	}
	if pages < 1 {
		pages = 1
	}
	return pages
}

// FetchResult is the outcome of one report API call. RefreshedToken is set
// when the client had to refresh the access token mid-call; the caller is
// responsible for persisting it.
type FetchResult struct {
	Records        []ResultRecord
	Paging         PagingState
	RefreshedToken *TokenPair
}

// ReportQuery is one data request against the reporting API.
type ReportQuery struct {
	ProfileID  string
	Dimensions []string
	Metrics    []string
	Filter     string
	DateFrom   string
	DateTo     string
	Sort       string
	StartIndex int
	PageSize   int
}

// RowID derives the deterministic primary key of an output row: a content
// hash of the profile external id and the raw dimension values in configured
// order. Re-extracting the same dimension combination yields the same id,
// which is what makes incremental uploads idempotent upserts.
func RowID(profileID string, dimensionValues []string) string {
	h := sha1.New()
	h.Write([]byte(profileID))
	h.Write([]byte(strings.Join(dimensionValues, "")))
	return hex.EncodeToString(h.Sum(nil))
}

var dateFormats = []string{
	"2006-01-02",
	"20060102",
	"2006/01/02",
	"01/02/2006",
	time.RFC3339,
}

// NormalizeDate rewrites a date dimension value to YYYY-MM-DD. Values that
// match none of the known source formats pass through unchanged.
func NormalizeDate(value string) string {
	for _, format := range dateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return value
}

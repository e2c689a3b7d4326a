package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapReport(t *testing.T) {
	raw := &rawReport{
		StartIndex:   1,
		ItemsPerPage: 1000,
		TotalResults: 2,
		ColumnHeaders: []rawColumnHeader{
			{Name: "ga:date", ColumnType: "DIMENSION", DataType: "STRING"},
			{Name: "ga:country", ColumnType: "DIMENSION", DataType: "STRING"},
			{Name: "ga:sessions", ColumnType: "METRIC", DataType: "INTEGER"},
		},
		Rows: [][]string{
			{"20240101", "Czechia", "10"},
			{"20240101", "Germany", "20"},
		},
	}

	records, paging := mapReport(raw)

	require.Equal(t, 1, paging.StartIndex)
	require.Equal(t, 1000, paging.ItemsPerPage)
	require.Equal(t, 2, paging.TotalResults)

	require.Len(t, records, 2)
	require.Equal(t, "20240101", records[0].Dimension("date"))
	require.Equal(t, "Czechia", records[0].Dimension("country"))
	require.Equal(t, "10", records[0].Metric("sessions"))
	require.Equal(t, "Germany", records[1].Dimension("country"))
	require.Equal(t, "20", records[1].Metric("sessions"))

	// prefix is stripped, so lookups by configured name succeed
	require.Equal(t, "", records[0].Dimension("ga:date"))
}

func TestMapReportWithoutRows(t *testing.T) {
	raw := &rawReport{
		StartIndex:   1,
		ItemsPerPage: 1000,
		TotalResults: 0,
		ColumnHeaders: []rawColumnHeader{
			{Name: "ga:date", ColumnType: "DIMENSION", DataType: "STRING"},
		},
	}

	records, paging := mapReport(raw)
	require.Empty(t, records)
	require.Equal(t, 0, paging.TotalResults)
}

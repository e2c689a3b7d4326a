package infrastructure

import (
	"strings"

	"gaextractor/internal/domain"
)

// rawReport is the wire shape of one data-query response: typed column
// headers plus a row matrix of strings.
type rawReport struct {
	StartIndex    int               `json:"startIndex"`
	ItemsPerPage  int               `json:"itemsPerPage"`
	TotalResults  int               `json:"totalResults"`
	ColumnHeaders []rawColumnHeader `json:"columnHeaders"`
	Rows          [][]string        `json:"rows"`
}

type rawColumnHeader struct {
	Name       string `json:"name"`
	ColumnType string `json:"columnType"`
	DataType   string `json:"dataType"`
}

// mapReport flattens a raw response into typed records. Field order inside
// each record follows the column header order, which is not necessarily the
// order the query asked for; downstream encoding must order by configuration.
// A response without rows yields an empty record set.
func mapReport(raw *rawReport) ([]domain.ResultRecord, domain.PagingState) {
	paging := domain.PagingState{
		StartIndex:   raw.StartIndex,
		ItemsPerPage: raw.ItemsPerPage,
		TotalResults: raw.TotalResults,
	}

	if len(raw.ColumnHeaders) == 0 || len(raw.Rows) == 0 {
		return nil, paging
	}

	type column struct {
		name      string
		dimension bool
	}
	columns := make([]column, len(raw.ColumnHeaders))
	for i, header := range raw.ColumnHeaders {
		columns[i] = column{
			name:      strings.TrimPrefix(header.Name, "ga:"),
			dimension: header.ColumnType == "DIMENSION",
		}
	}

	records := make([]domain.ResultRecord, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		var record domain.ResultRecord
		for i, value := range row {
			if i >= len(columns) {
				break
			}
			field := domain.Field{Name: columns[i].name, Value: value}
			if columns[i].dimension {
				record.Dimensions = append(record.Dimensions, field)
			} else {
				record.Metrics = append(record.Metrics, field)
			}
		}
		records = append(records, record)
	}

	return records, paging
}

package domain

// Account is an authorized analytics account together with its per-table
// report configuration. Token fields are opaque to the extractor; they are
// read before a run and written back only when the API client refreshed them.
type Account struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	GoogleID     string `json:"google_id"`
	Email        string `json:"email"`
	Owner        string `json:"owner,omitempty"`
	Description  string `json:"description,omitempty"`
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
	OutputBucket string `json:"output_bucket,omitempty"`

	Config   ReportConfig `json:"configuration"`
	Profiles []Profile    `json:"profiles"`
}

// Authorized reports whether the account holds an access token. Accounts
// without one are invisible to planning.
func (a *Account) Authorized() bool {
	return a.AccessToken != ""
}

// TableConfig describes one configured report table. Metric and dimension
// order is the output column order.
type TableConfig struct {
	Table        string   `json:"table"`
	Metrics      []string `json:"metrics"`
	Dimensions   []string `json:"dimensions"`
	Filter       string   `json:"filter,omitempty"`
	Antisampling bool     `json:"antisampling,omitempty"`
	// Profile restricts the table to a single profile external id.
	Profile string `json:"profile,omitempty"`
}

// ReportConfig is the ordered set of table configurations of one account.
// A slice keeps configuration iteration order stable across runs.
type ReportConfig []TableConfig

// Table returns the configuration of the named table.
func (c ReportConfig) Table(name string) (TableConfig, bool) {
	for _, t := range c {
		if t.Table == name {
			return t, true
		}
	}
	return TableConfig{}, false
}

// Profile is a named analytics view inside a web property, identified by its
// external (google) id. It is the atomic unit queried for report data.
type Profile struct {
	GoogleID        string `json:"google_id"`
	Name            string `json:"name"`
	WebPropertyID   string `json:"web_property_id"`
	WebPropertyName string `json:"web_property_name,omitempty"`
	AccountID       string `json:"account_id,omitempty"`
	AccountName     string `json:"account_name,omitempty"`
}

// TokenPair is an OAuth access/refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

package usecase

import (
	"time"

	"gaextractor/internal/domain"
)

// ExtractionPlanner resolves run options into the ordered list of
// (account, profile, table) extraction jobs.
type ExtractionPlanner struct {
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewExtractionPlanner() *ExtractionPlanner {
	return &ExtractionPlanner{Now: time.Now}
}

// Plan expands accounts into jobs. The default date window lags behind the
// current day because near-real-time rows in the source API are incomplete:
// since = today-4d, until = today-1d, both inclusive.
//
// A dataset filter is only meaningful inside one account's configuration, so
// requesting one without an account filter is rejected outright instead of
// silently producing an empty plan.
func (p *ExtractionPlanner) Plan(accounts []*domain.Account, options domain.RunOptions) ([]domain.ReportJob, error) {
	now := p.Now()

	dateFrom := now.AddDate(0, 0, -4).Format("2006-01-02")
	dateTo := now.AddDate(0, 0, -1).Format("2006-01-02")
	if options.Since != nil {
		dateFrom = options.Since.Format("2006-01-02")
	}
	if options.Until != nil {
		dateTo = options.Until.Format("2006-01-02")
	}

	if options.Account != "" {
		scoped := findAccount(accounts, options.Account)
		if scoped == nil {
			return nil, domain.NewError(domain.KindNotFound, "account '%s' does not exist", options.Account)
		}
		accounts = []*domain.Account{scoped}
	}

	if options.Dataset != "" {
		if options.Account == "" {
			return nil, domain.NewError(domain.KindBadRequest, "dataset filter requires an account filter")
		}
		if _, ok := accounts[0].Config.Table(options.Dataset); !ok {
			return nil, domain.NewError(domain.KindNotFound, "dataset '%s' does not exist", options.Dataset)
		}
	}

	var jobs []domain.ReportJob
	for _, account := range accounts {
		if !account.Authorized() {
			continue
		}

		config := account.Config
		if options.Dataset != "" {
			cfg, ok := config.Table(options.Dataset)
			if !ok {
				continue
			}
			config = domain.ReportConfig{cfg}
		}

		for _, profile := range account.Profiles {
			for _, cfg := range config {
				if cfg.Profile != "" && cfg.Profile != profile.GoogleID {
					continue
				}

				jobs = append(jobs, domain.ReportJob{
					Account:      account,
					Profile:      profile,
					Table:        cfg.Table,
					Metrics:      cfg.Metrics,
					Dimensions:   cfg.Dimensions,
					Filter:       cfg.Filter,
					DateFrom:     dateFrom,
					DateTo:       dateTo,
					Antisampling: cfg.Antisampling,
				})
			}
		}
	}

	return jobs, nil
}

func findAccount(accounts []*domain.Account, id string) *domain.Account {
	for _, account := range accounts {
		if account.ID == id {
			return account
		}
	}
	return nil
}

package usecase

import (
	"context"
	"fmt"
	"time"

	"gaextractor/internal/domain"
	"gaextractor/pkg/logger"
	"gaextractor/pkg/metrics"
)

// ExtractionService orchestrates one extraction run: it walks the planned
// jobs account by account, installs credentials, drives the paged fetch loop
// and routes results to the table writer. Jobs fail independently; only an
// authorization or setup failure abandons the rest of an account, and only a
// local failure (staging I/O, sink) aborts the run.
type ExtractionService struct {
	api      domain.ReportAPI
	accounts domain.AccountRepository
	sink     domain.StorageSink
	planner  *ExtractionPlanner
	writer   *TableWriter
	logger   *logger.Logger
	metrics  *metrics.Metrics

	// component names the default destination bucket, in.c-<component>-<accountID>.
	component string
}

func NewExtractionService(
	api domain.ReportAPI,
	accounts domain.AccountRepository,
	sink domain.StorageSink,
	planner *ExtractionPlanner,
	writer *TableWriter,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	component string,
) *ExtractionService {
	return &ExtractionService{
		api:       api,
		accounts:  accounts,
		sink:      sink,
		planner:   planner,
		writer:    writer,
		logger:    logger,
		metrics:   metrics,
		component: component,
	}
}

type accountJobs struct {
	account *domain.Account
	jobs    []domain.ReportJob
}

// Run executes a full extraction run and returns the per-job status map.
// The map is populated even on partial failure; the error return is reserved
// for planning failures and failures local to this process.
func (s *ExtractionService) Run(ctx context.Context, options domain.RunOptions) (domain.RunStatus, error) {
	start := time.Now()
	log := s.logger.WithContext(ctx)

	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		s.metrics.RecordRun("failed", time.Since(start))
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	jobs, err := s.planner.Plan(accounts, options)
	if err != nil {
		s.metrics.RecordRun("failed", time.Since(start))
		return nil, err
	}

	log.WithField("jobs", len(jobs)).Info("Starting extraction run")

	status := domain.RunStatus{}
	for _, group := range groupByAccount(jobs) {
		// Cancellation is coarse: checked between accounts and jobs, never
		// mid-page, since one page fetch is the smallest unit of work.
		if ctx.Err() != nil {
			s.metrics.RecordRun("cancelled", time.Since(start))
			return status, ctx.Err()
		}

		if err := s.runAccount(ctx, group, status); err != nil {
			s.metrics.RecordRun("failed", time.Since(start))
			return status, err
		}
	}

	s.metrics.RecordRun("success", time.Since(start))
	log.WithField("duration", time.Since(start)).Info("Extraction run completed")

	return status, nil
}

// ListProfiles lists every profile reachable with the account's credentials,
// grouped by remote account and web property name.
func (s *ExtractionService) ListProfiles(ctx context.Context, accountID string) (map[string]map[string][]domain.Profile, error) {
	account, err := s.accounts.GetAccountBy(ctx, "id", accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.NewError(domain.KindNotFound, "account '%s' does not exist", accountID)
	}
	if !account.Authorized() {
		return nil, domain.NewError(domain.KindUnauthorized, "account '%s' is not authorized", accountID)
	}

	s.api.SetCredentials(domain.TokenPair{AccessToken: account.AccessToken, RefreshToken: account.RefreshToken})

	profiles, refreshed, err := s.api.ListAllProfiles(ctx, "")
	if perr := s.persistRefreshedTokens(ctx, account, refreshed); perr != nil {
		return nil, perr
	}
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *ExtractionService) runAccount(ctx context.Context, group accountJobs, status domain.RunStatus) error {
	account := group.account
	log := s.logger.WithContext(ctx).WithField("account", account.ID)

	bucket, err := s.ensureBucket(ctx, account)
	if err != nil {
		log.WithError(err).Error("Bucket setup failed, skipping account")
		failRemaining(status, group.jobs, 0, err)
		return nil
	}

	s.api.SetCredentials(domain.TokenPair{AccessToken: account.AccessToken, RefreshToken: account.RefreshToken})

	if err := s.uploadProfilesTable(ctx, account, bucket); err != nil {
		return err
	}

	for i, job := range group.jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.runJob(ctx, job, bucket, status)
		if err == nil {
			continue
		}

		if domain.IsKind(err, domain.KindUnauthorized) {
			// bad or unrefreshable credentials make every remaining job of
			// this account pointless
			log.WithError(err).Error("Account authorization failed, abandoning remaining jobs")
			failRemaining(status, group.jobs, i+1, err)
			return nil
		}

		if _, ok := domain.AsExtractionError(err); !ok {
			// unclassified means local: staging file or sink trouble
			return err
		}
	}

	return nil
}

func (s *ExtractionService) runJob(ctx context.Context, job domain.ReportJob, bucket string, status domain.RunStatus) error {
	s.metrics.IncJobsInFlight()
	defer s.metrics.DecJobsInFlight()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"account": job.Account.ID,
		"profile": job.Profile.GoogleID,
		"table":   job.Table,
	})

	tableID := bucket + "." + job.Table

	var err error
	if job.Antisampling {
		// One query per day keeps every request under the source API's
		// sampling threshold. Each day is uploaded incrementally, so a
		// mid-window failure loses nothing already extracted.
		var days []string
		days, err = dayRange(job.DateFrom, job.DateTo)
		if err == nil {
			for _, day := range days {
				if err = s.extractRange(ctx, job, tableID, day, day); err != nil {
					break
				}
			}
		}
	} else {
		err = s.extractRange(ctx, job, tableID, job.DateFrom, job.DateTo)
	}

	if err == nil {
		status.Set(job.Account.ID, job.Profile.Name, job.Table, domain.JobStatus{})
		s.metrics.RecordJob("success")
		return nil
	}

	status.Set(job.Account.ID, job.Profile.Name, job.Table, domain.JobStatus{Err: err.Error()})
	s.metrics.RecordJob("failed")
	log.WithError(err).Error("Extraction job failed")

	return err
}

// extractRange performs one (table, date-range) extraction: the full paged
// fetch loop into a single staging file followed by a single incremental
// upload.
func (s *ExtractionService) extractRange(ctx context.Context, job domain.ReportJob, tableID, dateFrom, dateTo string) error {
	query := domain.ReportQuery{
		ProfileID:  job.Profile.GoogleID,
		Dimensions: job.Dimensions,
		Metrics:    job.Metrics,
		Filter:     job.Filter,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
	}

	result, err := s.api.Fetch(ctx, query)
	// a failed call may still carry a refreshed token pair; persist it
	// before acting on the failure
	if result != nil {
		if perr := s.persistRefreshedTokens(ctx, job.Account, result.RefreshedToken); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	s.metrics.RecordPageFetched()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"profile":  job.Profile.GoogleID,
		"table":    job.Table,
		"dateFrom": dateFrom,
		"dateTo":   dateTo,
		"results":  result.Paging.TotalResults,
	}).Info("Extracting")

	if len(result.Records) == 0 {
		return nil
	}

	staging, err := s.writer.Open(job.Table, job.Profile)
	if err != nil {
		return err
	}
	uploading := false
	defer func() {
		if !uploading {
			s.writer.Discard(staging)
		}
	}()

	if err := s.writer.Append(staging, result.Records, job.Profile, job.Dimensions, job.Metrics); err != nil {
		return err
	}

	paging := result.Paging
	if paging.TotalResults > paging.ItemsPerPage {
		pages := paging.Pages()
		for page := 1; page < pages; page++ {
			next := query
			next.StartIndex = page*paging.ItemsPerPage + 1
			next.PageSize = paging.ItemsPerPage

			result, err = s.api.Fetch(ctx, next)
			if result != nil {
				if perr := s.persistRefreshedTokens(ctx, job.Account, result.RefreshedToken); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			s.metrics.RecordPageFetched()

			if err := s.writer.Append(staging, result.Records, job.Profile, job.Dimensions, job.Metrics); err != nil {
				return err
			}
		}
	}

	uploading = true
	return s.writer.Upload(ctx, staging, tableID, true)
}

// persistRefreshedTokens stores the new token pair whenever the API client
// had to refresh mid-call, so a later crash doesn't leave the account with a
// dead access token.
func (s *ExtractionService) persistRefreshedTokens(ctx context.Context, account *domain.Account, refreshed *domain.TokenPair) error {
	if refreshed == nil {
		return nil
	}

	account.AccessToken = refreshed.AccessToken
	account.RefreshToken = refreshed.RefreshToken

	if err := s.accounts.SaveTokens(ctx, account.ID, *refreshed); err != nil {
		return domain.WrapError(domain.KindUnauthorized, err, "failed to persist refreshed credentials for account '%s'", account.ID)
	}

	s.metrics.RecordTokenRefresh()
	s.logger.WithContext(ctx).WithField("account", account.ID).Info("Persisted refreshed credentials")
	return nil
}

// ensureBucket resolves the destination bucket of an account. A missing
// default bucket is created; an explicitly configured one must already exist.
func (s *ExtractionService) ensureBucket(ctx context.Context, account *domain.Account) (string, error) {
	if account.OutputBucket != "" {
		exists, err := s.sink.BucketExists(ctx, account.OutputBucket)
		if err != nil {
			return "", fmt.Errorf("failed to check bucket %s: %w", account.OutputBucket, err)
		}
		if !exists {
			return "", domain.NewError(domain.KindBadRequest, "configured output bucket '%s' does not exist", account.OutputBucket)
		}
		return account.OutputBucket, nil
	}

	name := s.component + "-" + account.ID
	bucketID := "in.c-" + name

	exists, err := s.sink.BucketExists(ctx, bucketID)
	if err != nil {
		return "", fmt.Errorf("failed to check bucket %s: %w", bucketID, err)
	}
	if !exists {
		// the sink owns bucket naming; uploads must target the id it returns
		created, err := s.sink.CreateBucket(ctx, name, "in", "Analytics data bucket")
		if err != nil {
			return "", fmt.Errorf("failed to create bucket %s: %w", bucketID, err)
		}
		return created, nil
	}

	return bucketID, nil
}

// uploadProfilesTable emits the per-account profiles summary (id, name),
// replacing the previous run's contents.
func (s *ExtractionService) uploadProfilesTable(ctx context.Context, account *domain.Account, bucket string) error {
	staging, err := s.writer.Open("profiles", domain.Profile{GoogleID: account.ID})
	if err != nil {
		return err
	}
	uploading := false
	defer func() {
		if !uploading {
			s.writer.Discard(staging)
		}
	}()

	if err := s.writer.WriteRow(staging, []string{"id", "name"}); err != nil {
		return err
	}
	for _, profile := range account.Profiles {
		if err := s.writer.WriteRow(staging, []string{profile.GoogleID, profile.Name}); err != nil {
			return err
		}
	}

	uploading = true
	return s.writer.Upload(ctx, staging, bucket+".profiles", false)
}

func groupByAccount(jobs []domain.ReportJob) []accountJobs {
	var groups []accountJobs
	index := make(map[string]int)

	for _, job := range jobs {
		i, ok := index[job.Account.ID]
		if !ok {
			i = len(groups)
			index[job.Account.ID] = i
			groups = append(groups, accountJobs{account: job.Account})
		}
		groups[i].jobs = append(groups[i].jobs, job)
	}

	return groups
}

func failRemaining(status domain.RunStatus, jobs []domain.ReportJob, from int, err error) {
	for _, job := range jobs[from:] {
		status.Set(job.Account.ID, job.Profile.Name, job.Table, domain.JobStatus{Err: err.Error()})
	}
}

func dayRange(from, to string) ([]string, error) {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return nil, domain.WrapError(domain.KindBadRequest, err, "invalid date '%s'", from)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return nil, domain.WrapError(domain.KindBadRequest, err, "invalid date '%s'", to)
	}

	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days, nil
}

package domain

import "context"

// interface for account/profile read access and token persistence
type AccountRepository interface {
	ListAccounts(ctx context.Context) ([]*Account, error)
	GetAccountBy(ctx context.Context, key, value string) (*Account, error)
	SaveTokens(ctx context.Context, accountID string, tokens TokenPair) error
}

// interface for the destination table store
type StorageSink interface {
	BucketExists(ctx context.Context, bucketID string) (bool, error)
	CreateBucket(ctx context.Context, name, stage, description string) (string, error)
	TableExists(ctx context.Context, tableID string) (bool, error)
	UploadTable(ctx context.Context, csvPath, tableID, primaryKey string, incremental bool) error
}

// interface for the remote reporting API. Both operations surface a token
// pair refreshed mid-call, on failure too, so the caller can always persist
// it before acting on the error.
type ReportAPI interface {
	SetCredentials(tokens TokenPair)
	Fetch(ctx context.Context, query ReportQuery) (*FetchResult, error)
	ListAllProfiles(ctx context.Context, accountFilter string) (map[string]map[string][]Profile, *TokenPair, error)
}

package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gaextractor/internal/domain"
	"gaextractor/pkg/logger"

	_ "github.com/mattn/go-sqlite3"
)

const accountSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	name          TEXT,
	google_id     TEXT,
	email         TEXT,
	owner         TEXT,
	description   TEXT,
	access_token  TEXT,
	refresh_token TEXT,
	output_bucket TEXT,
	configuration TEXT,
	position      INTEGER
);
CREATE TABLE IF NOT EXISTS profiles (
	account_id        TEXT,
	google_id         TEXT,
	name              TEXT,
	web_property_id   TEXT,
	web_property_name TEXT,
	account_name      TEXT,
	position          INTEGER,
	PRIMARY KEY (account_id, google_id)
);
`

// implements domain.AccountRepository on sqlite
type AccountRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewAccountRepository(dsn string, logger *logger.Logger) (*AccountRepository, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open accounts db: %w", err)
	}
	if _, err := db.Exec(accountSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init accounts schema: %w", err)
	}
	return &AccountRepository{db: db, logger: logger}, nil
}

func (r *AccountRepository) Close() error {
	return r.db.Close()
}

const accountColumns = `id, name, google_id, email, owner, description,
	access_token, refresh_token, output_bucket, configuration`

func (r *AccountRepository) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	for _, account := range accounts {
		if err := r.loadProfiles(ctx, account); err != nil {
			return nil, err
		}
	}

	return accounts, nil
}

func (r *AccountRepository) GetAccountBy(ctx context.Context, key, value string) (*domain.Account, error) {
	column, ok := map[string]string{
		"id":       "id",
		"googleId": "google_id",
		"email":    "email",
	}[key]
	if !ok {
		return nil, fmt.Errorf("unsupported account lookup key %q", key)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+column+` = ? LIMIT 1`, value)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	account, err := scanAccount(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadProfiles(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// SaveTokens persists a refreshed token pair. Encryption at rest, if any, is
// the store's concern, not the extractor's.
func (r *AccountRepository) SaveTokens(ctx context.Context, accountID string, tokens domain.TokenPair) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET access_token = ?, refresh_token = ? WHERE id = ?`,
		tokens.AccessToken, tokens.RefreshToken, accountID)
	if err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("account %q not found", accountID)
	}
	return nil
}

// CreateAccount inserts an account and its profiles. Used by configuration
// bootstrap, not by extraction runs.
func (r *AccountRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	config, err := json.Marshal(account.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	defer tx.Rollback()

	var position int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM accounts`).Scan(&position); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Name, account.GoogleID, account.Email, account.Owner,
		account.Description, account.AccessToken, account.RefreshToken,
		account.OutputBucket, string(config), position)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	for i, profile := range account.Profiles {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO profiles (account_id, google_id, name, web_property_id, web_property_name, account_name, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			account.ID, profile.GoogleID, profile.Name, profile.WebPropertyID,
			profile.WebPropertyName, profile.AccountName, i)
		if err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
	}

	return tx.Commit()
}

func (r *AccountRepository) loadProfiles(ctx context.Context, account *domain.Account) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT google_id, name, web_property_id, web_property_name, account_name
		 FROM profiles WHERE account_id = ? ORDER BY position, google_id`, account.ID)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		profile := domain.Profile{AccountID: account.ID}
		if err := rows.Scan(&profile.GoogleID, &profile.Name, &profile.WebPropertyID,
			&profile.WebPropertyName, &profile.AccountName); err != nil {
			return fmt.Errorf("failed to load profiles: %w", err)
		}
		account.Profiles = append(account.Profiles, profile)
	}
	return rows.Err()
}

func scanAccount(rows *sql.Rows) (*domain.Account, error) {
	var account domain.Account
	var config string
	err := rows.Scan(&account.ID, &account.Name, &account.GoogleID, &account.Email,
		&account.Owner, &account.Description, &account.AccessToken,
		&account.RefreshToken, &account.OutputBucket, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	if config != "" {
		if err := json.Unmarshal([]byte(config), &account.Config); err != nil {
			return nil, fmt.Errorf("failed to parse configuration of account %q: %w", account.ID, err)
		}
	}
	return &account, nil
}

package infrastructure

import (
	"context"
	"path/filepath"
	"testing"

	"gaextractor/internal/domain"

	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *AccountRepository {
	t.Helper()
	repo, err := NewAccountRepository(filepath.Join(t.TempDir(), "accounts.db"), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func storedAccount(id string) *domain.Account {
	return &domain.Account{
		ID:           id,
		Name:         "Account " + id,
		GoogleID:     "google-" + id,
		Email:        id + "@example.com",
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		Config: domain.ReportConfig{{
			Table:        "visitors",
			Metrics:      []string{"sessions"},
			Dimensions:   []string{"date", "country"},
			Filter:       "sessions > 10",
			Antisampling: true,
		}},
		Profiles: []domain.Profile{
			{GoogleID: "111", Name: "All Web Site Data", WebPropertyID: "UA-1", WebPropertyName: "Site", AccountName: "Acme"},
			{GoogleID: "222", Name: "Filtered View", WebPropertyID: "UA-1", WebPropertyName: "Site", AccountName: "Acme"},
		},
	}
}

func TestAccountRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateAccount(ctx, storedAccount("a")))
	require.NoError(t, repo.CreateAccount(ctx, storedAccount("b")))

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	// insertion order survives the round trip
	require.Equal(t, "a", accounts[0].ID)
	require.Equal(t, "b", accounts[1].ID)

	got := accounts[0]
	require.Equal(t, "Account a", got.Name)
	require.Equal(t, "access-a", got.AccessToken)
	require.Equal(t, "refresh-a", got.RefreshToken)
	require.True(t, got.Authorized())

	require.Len(t, got.Config, 1)
	table, ok := got.Config.Table("visitors")
	require.True(t, ok)
	require.Equal(t, []string{"date", "country"}, table.Dimensions)
	require.Equal(t, []string{"sessions"}, table.Metrics)
	require.Equal(t, "sessions > 10", table.Filter)
	require.True(t, table.Antisampling)

	require.Len(t, got.Profiles, 2)
	require.Equal(t, "111", got.Profiles[0].GoogleID)
	require.Equal(t, "a", got.Profiles[0].AccountID)
	require.Equal(t, "222", got.Profiles[1].GoogleID)
}

func TestGetAccountBy(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateAccount(ctx, storedAccount("a")))

	byID, err := repo.GetAccountBy(ctx, "id", "a")
	require.NoError(t, err)
	require.NotNil(t, byID)
	require.Equal(t, "a", byID.ID)
	require.Len(t, byID.Profiles, 2)

	byGoogleID, err := repo.GetAccountBy(ctx, "googleId", "google-a")
	require.NoError(t, err)
	require.NotNil(t, byGoogleID)
	require.Equal(t, "a", byGoogleID.ID)

	byEmail, err := repo.GetAccountBy(ctx, "email", "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)

	missing, err := repo.GetAccountBy(ctx, "id", "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	_, err = repo.GetAccountBy(ctx, "owner", "whoever")
	require.Error(t, err)
}

func TestSaveTokens(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateAccount(ctx, storedAccount("a")))

	require.NoError(t, repo.SaveTokens(ctx, "a", domain.TokenPair{
		AccessToken:  "fresh-access",
		RefreshToken: "fresh-refresh",
	}))

	account, err := repo.GetAccountBy(ctx, "id", "a")
	require.NoError(t, err)
	require.Equal(t, "fresh-access", account.AccessToken)
	require.Equal(t, "fresh-refresh", account.RefreshToken)

	err = repo.SaveTokens(ctx, "missing", domain.TokenPair{AccessToken: "x", RefreshToken: "y"})
	require.Error(t, err)
}

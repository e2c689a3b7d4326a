package usecase

import (
	"testing"
	"time"

	"gaextractor/internal/domain"

	"github.com/stretchr/testify/require"
)

func fixedPlanner(date string) *ExtractionPlanner {
	now, _ := time.Parse("2006-01-02", date)
	p := NewExtractionPlanner()
	p.Now = func() time.Time { return now }
	return p
}

func plannerAccount(id string, tables ...domain.TableConfig) *domain.Account {
	return &domain.Account{
		ID:           id,
		Name:         id,
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		Config:       tables,
		Profiles:     []domain.Profile{{GoogleID: "111", Name: "profile-111"}},
	}
}

func visitorsTable() domain.TableConfig {
	return domain.TableConfig{
		Table:      "visitors",
		Metrics:    []string{"sessions"},
		Dimensions: []string{"date", "country"},
	}
}

func TestPlanDefaultDateWindow(t *testing.T) {
	planner := fixedPlanner("2024-05-10")

	jobs, err := planner.Plan([]*domain.Account{plannerAccount("a", visitorsTable())}, domain.RunOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "2024-05-06", jobs[0].DateFrom)
	require.Equal(t, "2024-05-09", jobs[0].DateTo)
}

func TestPlanExplicitDateWindow(t *testing.T) {
	planner := fixedPlanner("2024-05-10")
	since, _ := time.Parse("2006-01-02", "2024-01-01")
	until, _ := time.Parse("2006-01-02", "2024-01-31")

	jobs, err := planner.Plan([]*domain.Account{plannerAccount("a", visitorsTable())}, domain.RunOptions{
		Since: &since,
		Until: &until,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "2024-01-01", jobs[0].DateFrom)
	require.Equal(t, "2024-01-31", jobs[0].DateTo)
}

func TestPlanUnknownAccount(t *testing.T) {
	planner := fixedPlanner("2024-05-10")

	_, err := planner.Plan([]*domain.Account{plannerAccount("a", visitorsTable())}, domain.RunOptions{
		Account: "nope",
	})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestPlanDatasetRequiresAccount(t *testing.T) {
	planner := fixedPlanner("2024-05-10")

	_, err := planner.Plan([]*domain.Account{plannerAccount("a", visitorsTable())}, domain.RunOptions{
		Dataset: "visitors",
	})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindBadRequest))
}

func TestPlanUnknownDataset(t *testing.T) {
	planner := fixedPlanner("2024-05-10")

	_, err := planner.Plan([]*domain.Account{plannerAccount("a", visitorsTable())}, domain.RunOptions{
		Account: "a",
		Dataset: "nope",
	})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestPlanDatasetScopesTables(t *testing.T) {
	planner := fixedPlanner("2024-05-10")
	account := plannerAccount("a",
		visitorsTable(),
		domain.TableConfig{Table: "content", Metrics: []string{"pageviews"}, Dimensions: []string{"pagePath"}},
	)

	jobs, err := planner.Plan([]*domain.Account{account}, domain.RunOptions{
		Account: "a",
		Dataset: "content",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "content", jobs[0].Table)
}

func TestPlanProfileRestriction(t *testing.T) {
	planner := fixedPlanner("2024-05-10")
	account := plannerAccount("a",
		domain.TableConfig{Table: "restricted", Metrics: []string{"sessions"}, Dimensions: []string{"date"}, Profile: "222"},
		visitorsTable(),
	)
	account.Profiles = []domain.Profile{
		{GoogleID: "111", Name: "profile-111"},
		{GoogleID: "222", Name: "profile-222"},
	}

	jobs, err := planner.Plan([]*domain.Account{account}, domain.RunOptions{})
	require.NoError(t, err)

	// profile 111 gets only visitors, profile 222 gets both
	require.Len(t, jobs, 3)
	require.Equal(t, "visitors", jobs[0].Table)
	require.Equal(t, "111", jobs[0].Profile.GoogleID)
	require.Equal(t, "restricted", jobs[1].Table)
	require.Equal(t, "222", jobs[1].Profile.GoogleID)
	require.Equal(t, "visitors", jobs[2].Table)
	require.Equal(t, "222", jobs[2].Profile.GoogleID)
}

func TestPlanSkipsUnauthorizedAccount(t *testing.T) {
	planner := fixedPlanner("2024-05-10")
	unauthorized := plannerAccount("a", visitorsTable())
	unauthorized.AccessToken = ""

	jobs, err := planner.Plan([]*domain.Account{unauthorized, plannerAccount("b", visitorsTable())}, domain.RunOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "b", jobs[0].Account.ID)
}

func TestPlanOrdering(t *testing.T) {
	planner := fixedPlanner("2024-05-10")
	tables := []domain.TableConfig{
		visitorsTable(),
		{Table: "content", Metrics: []string{"pageviews"}, Dimensions: []string{"pagePath"}},
	}
	a := plannerAccount("a", tables...)
	a.Profiles = []domain.Profile{{GoogleID: "1", Name: "one"}, {GoogleID: "2", Name: "two"}}
	b := plannerAccount("b", tables...)

	jobs, err := planner.Plan([]*domain.Account{a, b}, domain.RunOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 6)

	var got []string
	for _, job := range jobs {
		got = append(got, job.Account.ID+"/"+job.Profile.GoogleID+"/"+job.Table)
	}
	require.Equal(t, []string{
		"a/1/visitors", "a/1/content",
		"a/2/visitors", "a/2/content",
		"b/111/visitors", "b/111/content",
	}, got)
}

func TestPlanCarriesAntisamplingFlag(t *testing.T) {
	planner := fixedPlanner("2024-05-10")
	account := plannerAccount("a", domain.TableConfig{
		Table:        "visitors",
		Metrics:      []string{"sessions"},
		Dimensions:   []string{"date"},
		Antisampling: true,
		Filter:       "sessions > 10",
	})

	jobs, err := planner.Plan([]*domain.Account{account}, domain.RunOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.True(t, jobs[0].Antisampling)
	require.Equal(t, "sessions > 10", jobs[0].Filter)
}

package repositories_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/noir/internal/models"
	"github.com/myrjola/noir/internal/repositories"
	"github.com/myrjola/noir/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func newCaseRepository(t *testing.T) *repositories.CaseRepository {
	t.Helper()
	repo := repositories.NewCaseRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))
	clock := time.Date(1947, time.January, 15, 22, 0, 0, 0, time.UTC)
	repo.SetNow(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	return repo
}

func docksState() models.GameState {
	return models.GameState{
		Logs:        []models.LogEntry{{Type: models.SpeakerSystem, Text: "Fog rolls in.", Timestamp: "23:00"}},
		Evidence:    []string{"Bullet casing"},
		Suspects:    []models.Suspect{{Name: "Vinny", Status: models.SuspectAlive, Notes: "Cleaning a gun."}},
		CaseSummary: "The trail leads to the docks. More to follow.",
		CurrentTime: "23:00",
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		want    string
	}{
		{name: "first sentence", summary: "The trail leads to the docks. More to follow.", want: "The trail leads to the docks"},
		{name: "no period", summary: "  A body in the fog  ", want: "A body in the fog"},
		{name: "empty", summary: "", want: "Untitled Case"},
		{name: "leading period", summary: ". Nothing before.", want: "Untitled Case"},
		{name: "truncated", summary: strings.Repeat("é", 70), want: strings.Repeat("é", 60)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, repositories.DeriveTitle(tt.summary))
		})
	}
}

func TestCaseRepository_SaveCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	repo := newCaseRepository(t)

	saved, err := repo.Save(ctx, alice, docksState())
	require.NoError(t, err)
	require.NotEmpty(t, saved.CaseID)
	require.Equal(t, "The trail leads to the docks", saved.Title)

	saved.Evidence = append(saved.Evidence, "Gun oil")
	saved.CaseSummary = "Vinny is sweating. The gun oil matches."
	saved, err = repo.Save(ctx, alice, saved)
	require.NoError(t, err)

	cases, err := repo.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	require.Equal(t, saved.CaseID, cases[0].ID)
	require.Equal(t, models.CaseStatusActive, cases[0].Status)
	// The title is derived once at creation.
	require.Equal(t, "The trail leads to the docks", cases[0].Title)

	c, err := repo.Get(ctx, saved.CaseID, alice)
	require.NoError(t, err)
	require.Equal(t, []string{"Bullet casing", "Gun oil"}, c.State.Evidence)
	require.Equal(t, saved.CaseID, c.State.CaseID)
	require.Equal(t, alice, c.UserID)
}

func TestCaseRepository_SaveWithoutUser(t *testing.T) {
	ctx := context.Background()
	repo := newCaseRepository(t)

	state := docksState()
	saved, err := repo.Save(ctx, nil, state)
	require.NoError(t, err)
	require.Equal(t, state, saved)

	cases, err := repo.List(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, cases)
}

func TestCaseRepository_UpdateFailsClosed(t *testing.T) {
	ctx := context.Background()
	repo := newCaseRepository(t)

	saved, err := repo.Save(ctx, alice, docksState())
	require.NoError(t, err)

	// Bob cannot overwrite Alice's case by guessing its id.
	_, err = repo.Save(ctx, bob, saved)
	require.ErrorIs(t, err, repositories.ErrNotFound)

	// An unknown id is not silently created.
	unknown := docksState()
	unknown.CaseID = "00000000-0000-0000-0000-000000000000"
	_, err = repo.Save(ctx, alice, unknown)
	require.ErrorIs(t, err, repositories.ErrNotFound)

	cases, err := repo.List(ctx, bob)
	require.NoError(t, err)
	require.Empty(t, cases)
}

func TestCaseRepository_SolvedStaysSolved(t *testing.T) {
	ctx := context.Background()
	repo := newCaseRepository(t)

	state := docksState()
	state.GameOver = true
	saved, err := repo.Save(ctx, alice, state)
	require.NoError(t, err)

	saved.GameOver = false
	saved, err = repo.Save(ctx, alice, saved)
	require.NoError(t, err)
	require.True(t, saved.GameOver)

	c, err := repo.Get(ctx, saved.CaseID, alice)
	require.NoError(t, err)
	require.Equal(t, models.CaseStatusSolved, c.Status)
	require.True(t, c.State.GameOver)
}

func TestCaseRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newCaseRepository(t)

	saved, err := repo.Save(ctx, alice, docksState())
	require.NoError(t, err)

	tests := []struct {
		name   string
		userID []byte
	}{
		{name: "other user", userID: bob},
		{name: "anonymous", userID: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, repo.Delete(ctx, saved.CaseID, tt.userID), repositories.ErrNotFound)
		})
	}

	// The record survives failed deletes.
	_, err = repo.Get(ctx, saved.CaseID, alice)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, saved.CaseID, alice))
	_, err = repo.Get(ctx, saved.CaseID, alice)
	require.ErrorIs(t, err, repositories.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, saved.CaseID, alice), repositories.ErrNotFound)
}

func TestCaseRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newCaseRepository(t)

	first, err := repo.Save(ctx, alice, docksState())
	require.NoError(t, err)
	second, err := repo.Save(ctx, alice, models.GameState{CaseSummary: "Murder on the express."})
	require.NoError(t, err)
	_, err = repo.Save(ctx, bob, docksState())
	require.NoError(t, err)

	cases, err := repo.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	require.Equal(t, second.CaseID, cases[0].ID)
	require.Equal(t, first.CaseID, cases[1].ID)

	// Updating bumps the case to the top.
	_, err = repo.Save(ctx, alice, first)
	require.NoError(t, err)
	cases, err = repo.List(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, first.CaseID, cases[0].ID)
}

package turn_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/noir/internal/ai"
	"github.com/myrjola/noir/internal/models"
	"github.com/myrjola/noir/internal/scenarios"
	"github.com/myrjola/noir/internal/testhelpers"
	"github.com/myrjola/noir/internal/turn"
	"github.com/stretchr/testify/require"
)

type reply struct {
	out string
	err error
}

// scriptedModel returns the replies in order and records the requests.
type scriptedModel struct {
	replies  []reply
	requests []ai.Request
}

func (m *scriptedModel) Generate(_ context.Context, req ai.Request) (string, error) {
	m.requests = append(m.requests, req)
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r.out, r.err
}

func status(code int) reply {
	return reply{err: &ai.StatusError{StatusCode: code, Err: errors.New(http.StatusText(code))}}
}

const validReply = `{"narrative":"The vial is empty.","visual_prompt":"a vial","location":"Cabin","time":"01:10",` +
	`"evidence":["Vial"],"suspects":[{"name":"Julian","status":"alive","notes":"Sweating."}],` +
	`"current_objective":"Ask Julian","case_summary":"Poison. Julian is nervous.","game_over":false}`

func newProcessor(t *testing.T, model ai.Model) (*turn.Processor, *[]time.Duration) {
	t.Helper()
	catalogue, err := scenarios.Default()
	require.NoError(t, err)
	var delays []time.Duration
	p := turn.NewProcessor(model, catalogue, testhelpers.NewLogger(io.Discard),
		turn.WithSleep(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}))
	return p, &delays
}

func TestProcess_RetriesTransientFailures(t *testing.T) {
	model := &scriptedModel{replies: []reply{
		status(http.StatusServiceUnavailable),
		status(http.StatusServiceUnavailable),
		{out: validReply},
	}}
	p, delays := newProcessor(t, model)

	result := p.Process(context.Background(), turn.Request{Input: "examine the vial"})
	require.False(t, result.Fallback)
	require.NoError(t, result.Err)
	require.Equal(t, 3, result.Attempts)
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *delays)
	require.Equal(t, models.TurnResponse{
		Narrative:        "The vial is empty.",
		VisualPrompt:     "a vial",
		Location:         "Cabin",
		Time:             "01:10",
		Evidence:         []string{"Vial"},
		Suspects:         []models.Suspect{{Name: "Julian", Status: models.SuspectAlive, Notes: "Sweating."}},
		CurrentObjective: "Ask Julian",
		CaseSummary:      "Poison. Julian is nervous.",
	}, result.Response)
}

func TestProcess_ExhaustedRetries(t *testing.T) {
	model := &scriptedModel{}
	// More failures than attempts, the turn gives up after five calls.
	for range turn.MaxAttempts + 2 {
		model.replies = append(model.replies, status(http.StatusTooManyRequests))
	}
	p, delays := newProcessor(t, model)

	result := p.Process(context.Background(), turn.Request{Input: "accuse Julian"})
	require.True(t, result.Fallback)
	require.Error(t, result.Err)
	require.True(t, ai.IsTransient(result.Err))
	require.Equal(t, 5, result.Attempts)
	require.Len(t, model.requests, 5)
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, *delays)
	require.Contains(t, result.Response.Narrative, turn.FallbackMarker)
	require.False(t, result.Response.GameOver)
	require.Equal(t, turn.Fallback, result.Response)
}

func TestProcess_NonTransientFailureIsNotRetried(t *testing.T) {
	model := &scriptedModel{replies: []reply{status(http.StatusUnauthorized)}}
	p, delays := newProcessor(t, model)

	result := p.Process(context.Background(), turn.Request{Input: "look"})
	require.True(t, result.Fallback)
	require.Equal(t, 1, result.Attempts)
	require.Empty(t, *delays)
}

func TestProcess_MalformedReplies(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{name: "not JSON", out: "The rain never stops."},
		{name: "missing narrative", out: `{"location":"Pier 13"}`},
		{name: "wrong type", out: `{"narrative":"Rain.","game_over":"maybe"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, delays := newProcessor(t, &scriptedModel{replies: []reply{{out: tt.out}}})
			result := p.Process(context.Background(), turn.Request{Input: "look"})
			require.True(t, result.Fallback)
			require.ErrorIs(t, result.Err, turn.ErrMalformedResponse)
			require.Empty(t, *delays)
		})
	}
}

func TestProcess_CancelledWhileWaiting(t *testing.T) {
	catalogue, err := scenarios.Default()
	require.NoError(t, err)
	model := &scriptedModel{replies: []reply{status(http.StatusServiceUnavailable)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := turn.NewProcessor(model, catalogue, testhelpers.NewLogger(io.Discard))

	result := p.Process(ctx, turn.Request{Input: "look"})
	require.True(t, result.Fallback)
	require.ErrorIs(t, result.Err, context.Canceled)
	require.Equal(t, 1, result.Attempts)
}

func TestProcess_Prompt(t *testing.T) {
	model := &scriptedModel{replies: []reply{{out: validReply}, {out: validReply}}}
	p, _ := newProcessor(t, model)

	p.Process(context.Background(), turn.Request{
		History:    []string{"SYSTEM: The train rattles."},
		Input:      "look at the body",
		ScenarioID: "story_express",
	})
	p.Process(context.Background(), turn.Request{Input: "START_GAME", ScenarioID: "unknown"})

	require.Len(t, model.requests, 2)
	require.Contains(t, model.requests[0].SystemInstruction, `STORY MODE: "The Midnight Express"`)
	require.Contains(t, model.requests[0].Message, "SYSTEM: The train rattles.")
	require.Contains(t, model.requests[0].Message, `"look at the body"`)
	require.NotContains(t, model.requests[1].SystemInstruction, "STORY MODE")
}

func TestProcess_NormalisesReply(t *testing.T) {
	out := "```json\n" + `{"narrative":"Rain.","evidence":["Vial"," "],"suspects":[` +
		`{"name":"Julian","status":"ARRESTED"},{"name":"Eleanor","status":"missing"},{"name":"","status":"dead"}]}` +
		"\n```"
	p, _ := newProcessor(t, &scriptedModel{replies: []reply{{out: out}}})

	result := p.Process(context.Background(), turn.Request{Input: "look"})
	require.False(t, result.Fallback, result.Err)
	require.Equal(t, []string{"Vial"}, result.Response.Evidence)
	require.Equal(t, []models.Suspect{
		{Name: "Julian", Status: models.SuspectArrested},
		{Name: "Eleanor", Status: models.SuspectAlive},
	}, result.Response.Suspects)
	require.True(t, strings.HasPrefix(result.Response.Narrative, "Rain"))
}

// Package turn runs one exchange with the game master: prompt assembly, bounded retries and lenient parsing.
package turn

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/noir/internal/ai"
	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/models"
	"github.com/myrjola/noir/internal/prompt"
	"github.com/myrjola/noir/internal/scenarios"
)

const (
	// MaxAttempts caps the model calls of one turn.
	MaxAttempts      = 5
	defaultBaseDelay = time.Second
)

// Fallback is substituted for the game master's reply when it cannot be reached or understood.
var Fallback = models.TurnResponse{ //nolint:gochecknoglobals // read-only value
	Narrative: "The connection to the precinct is fuzzy... I can't make out what you're saying, Detective. " +
		"(System Error: connection lost)",
	VisualPrompt: "A static-filled screen with a disconnect symbol.",
	GameOver:     false,
}

// FallbackMarker appears in every fallback narrative.
const FallbackMarker = "(System Error:"

type Request struct {
	// History is the transcript so far, see gamestate.Transcript.
	History []string
	Input   string
	// ScenarioID selects a fixed plot. Empty or unknown ids let the game master invent the case.
	ScenarioID string
}

// Result is either a parsed response or the Fallback together with the reason.
type Result struct {
	Response models.TurnResponse
	Fallback bool
	Err      error
	Attempts int
}

type Processor struct {
	model       ai.Model
	catalogue   *scenarios.Catalogue
	logger    *slog.Logger
	baseDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

type Option func(*Processor)

// WithSleep replaces the context aware sleep between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Processor) {
		p.sleep = sleep
	}
}

func NewProcessor(model ai.Model, catalogue *scenarios.Catalogue, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		model:     model,
		catalogue: catalogue,
		logger:    logger,
		baseDelay: defaultBaseDelay,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // passed through as is
	case <-timer.C:
		return nil
	}
}

// Process asks the game master for the next turn. It never fails: problems are reported in Result.Err alongside
// the Fallback response.
func (p *Processor) Process(ctx context.Context, req Request) Result {
	var addendum string
	if scenario, ok := p.catalogue.Lookup(req.ScenarioID); ok {
		addendum = scenario.Addendum
	}
	modelReq := ai.Request{
		SystemInstruction: prompt.System(addendum),
		Message:           prompt.Message(req.History, req.Input),
	}

	var (
		raw     string
		err     error
		attempt int
	)
	for attempt = 1; attempt <= MaxAttempts; attempt++ {
		if raw, err = p.model.Generate(ctx, modelReq); err == nil {
			break
		}
		if !ai.IsTransient(err) || attempt == MaxAttempts {
			return p.fallback(ctx, errors.Wrap(err, "generate turn", slog.Int("attempt", attempt)), attempt)
		}
		delay := p.baseDelay << attempt
		p.logger.LogAttrs(ctx, slog.LevelWarn, "game master unavailable, retrying",
			slog.Int("attempt", attempt), slog.Duration("delay", delay), errors.SlogError(err))
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return p.fallback(ctx, errors.Wrap(sleepErr, "wait for retry", slog.Int("attempt", attempt)), attempt)
		}
	}

	resp, err := p.parse(ctx, raw)
	if err != nil {
		return p.fallback(ctx, errors.Wrap(err, "parse turn", slog.String("raw", raw)), attempt)
	}
	return Result{Response: resp, Attempts: attempt}
}

func (p *Processor) fallback(ctx context.Context, err error, attempts int) Result {
	p.logger.LogAttrs(ctx, slog.LevelError, "game master reply replaced by fallback",
		slog.Int("attempts", attempts), errors.SlogError(err))
	return Result{
		Response: Fallback,
		Fallback: true,
		Err:      err,
		Attempts: attempts,
	}
}

package game

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/myrjola/noir/internal/ai"
	"github.com/myrjola/noir/internal/envstruct"
	"github.com/myrjola/noir/internal/gamestate"
	"github.com/myrjola/noir/internal/logging"
	"github.com/myrjola/noir/internal/models"
	"github.com/myrjola/noir/internal/prompt"
	"github.com/myrjola/noir/internal/scenarios"
	"github.com/myrjola/noir/internal/sceneimage"
	"github.com/myrjola/noir/internal/turn"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "game",
	Title: "Game",
}

type config struct {
	AIProvider    string `env:"NOIR_AI_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey  string `env:"GEMINI_API_KEY" envDefault:""`
	GeminiModel   string `env:"NOIR_GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiBaseURL string `env:"NOIR_GEMINI_BASE_URL" envDefault:""`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIModel   string `env:"NOIR_OPENAI_MODEL" envDefault:"gpt-3.5-turbo-1106"`
	OpenAIBaseURL string `env:"NOIR_OPENAI_BASE_URL" envDefault:""`
}

func init() {
	Play.Flags().String("scenario", "", "fixed scenario id, empty lets the game master invent the case")
}

var Scenarios = &cobra.Command{
	Use:     "scenarios",
	GroupID: "game",
	Short:   "List scenarios",
	Long:    `Lists the fixed case files that can be passed to play --scenario`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalogue, err := scenarios.Default()
		if err != nil {
			return fmt.Errorf("load scenarios: %w", err)
		}
		for _, s := range catalogue.All() {
			if _, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.ID, s.Title, s.Description); err != nil {
				return err //nolint:wrapcheck // terminal output
			}
		}
		return nil
	},
}

// Play runs an investigation in the terminal against the configured game master.
var Play = &cobra.Command{
	Use:     "play",
	GroupID: "game",
	Short:   "Play a case",
	Long:    `Plays a noir case in the terminal. Type quit to leave the case.`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		scenarioID, err := cmd.Flags().GetString("scenario")
		if err != nil {
			return fmt.Errorf("invalid scenario flag: %w", err)
		}
		var cfg config
		if err = envstruct.Populate(&cfg, os.LookupEnv); err != nil {
			return fmt.Errorf("populate config: %w", err)
		}
		catalogue, err := scenarios.Default()
		if err != nil {
			return fmt.Errorf("load scenarios: %w", err)
		}
		if _, ok := catalogue.Lookup(scenarioID); scenarioID != "" && !ok {
			return fmt.Errorf("unknown scenario %q, see the scenarios command", scenarioID)
		}
		ctx := cmd.Context()
		model, err := ai.New(ctx, ai.Settings{
			Provider:      cfg.AIProvider,
			GeminiAPIKey:  cfg.GeminiAPIKey,
			GeminiModel:   cfg.GeminiModel,
			GeminiBaseURL: cfg.GeminiBaseURL,
			OpenAIAPIKey:  cfg.OpenAIAPIKey,
			OpenAIModel:   cfg.OpenAIModel,
			OpenAIBaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			return fmt.Errorf("new model: %w", err)
		}
		logger := logging.NewLogger(cmd.ErrOrStderr(), slog.LevelWarn)
		processor := turn.NewProcessor(model, catalogue, logger)
		return play(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), processor, scenarioID)
	},
}

func play(ctx context.Context, in io.Reader, out io.Writer, processor *turn.Processor, scenarioID string) error {
	state := gamestate.New(scenarioID)
	state = step(ctx, processor, state, "")
	if err := printTurn(out, state); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for !state.GameOver {
		if _, err := fmt.Fprint(out, "> "); err != nil {
			return err //nolint:wrapcheck // terminal output
		}
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "quit", "exit":
			_, err := fmt.Fprintln(out, "You turn up your collar and walk away from the case.")
			return err //nolint:wrapcheck // terminal output
		}
		state = step(ctx, processor, state, input)
		if err := printTurn(out, state); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if state.GameOver {
		_, err := fmt.Fprintln(out, "Case closed.")
		return err //nolint:wrapcheck // terminal output
	}
	return nil
}

// step plays one turn. An empty input opens the case.
func step(ctx context.Context, processor *turn.Processor, state models.GameState, input string) models.GameState {
	req := turn.Request{Input: input, ScenarioID: state.ScenarioID}
	if input == "" {
		req.Input = prompt.StartGame
	} else {
		req.History = gamestate.Transcript(state)
	}
	result := processor.Process(ctx, req)
	next := gamestate.Turn{Input: input, Response: result.Response, Fallback: result.Fallback}
	if !result.Fallback {
		// A failed seed draw keeps the previous scene.
		next.SceneImageURL, _ = sceneimage.RandomURL(result.Response.VisualPrompt)
	}
	return gamestate.Apply(state, next)
}

func printTurn(out io.Writer, state models.GameState) error {
	var b strings.Builder
	if n := len(state.Logs); n > 0 {
		b.WriteString(state.Logs[n-1].Text)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "[%s | %s] %s\n", state.CurrentLocation, state.CurrentTime, state.CurrentObjective)
	if state.SceneImageURL != "" {
		fmt.Fprintf(&b, "Scene: %s\n", state.SceneImageURL)
	}
	_, err := io.WriteString(out, b.String())
	return err //nolint:wrapcheck // terminal output
}

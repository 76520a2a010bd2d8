package turn

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/models"
)

var ErrMalformedResponse = errors.NewSentinel("malformed game master response")

// parse validates the model output. It tolerates a Markdown code fence around the JSON document.
func (p *Processor) parse(ctx context.Context, raw string) (models.TurnResponse, error) {
	var resp models.TurnResponse
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &resp); err != nil {
		return resp, errors.Join(ErrMalformedResponse, errors.Wrap(err, "JSON decode"))
	}
	if strings.TrimSpace(resp.Narrative) == "" {
		return resp, errors.Wrap(ErrMalformedResponse, "narrative missing")
	}

	evidence := make([]string, 0, len(resp.Evidence))
	for _, item := range resp.Evidence {
		if strings.TrimSpace(item) != "" {
			evidence = append(evidence, item)
		}
	}
	resp.Evidence = evidence

	suspects := make([]models.Suspect, 0, len(resp.Suspects))
	for _, s := range resp.Suspects {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		status := models.SuspectStatus(strings.ToLower(strings.TrimSpace(string(s.Status))))
		if !status.Valid() {
			p.logger.LogAttrs(ctx, slog.LevelWarn, "unknown suspect status",
				slog.String("suspect", s.Name), slog.String("status", string(s.Status)))
			status = models.SuspectAlive
		}
		s.Status = status
		suspects = append(suspects, s)
	}
	resp.Suspects = suspects
	return resp, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string, e.g. ```json.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

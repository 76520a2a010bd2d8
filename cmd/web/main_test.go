package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/myrjola/noir/internal/ai"
	"github.com/myrjola/noir/internal/e2etest"
	"github.com/myrjola/noir/internal/models"
	"github.com/myrjola/noir/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

const (
	openingSummary = "The trail leads to the docks. A longshoreman lies face down in the oil."
	openingReply   = `{
		"narrative": "Rain hammers the pier. A body floats between the pilings.",
		"visual_prompt": "body floating under a pier at night",
		"location": "Pier 9",
		"time": "23:40",
		"evidence": ["Torn shipping manifest"],
		"suspects": [{"name": "Vinnie Russo", "status": "alive", "notes": "Runs the night shift."}],
		"current_objective": "Identify the victim",
		"case_summary": "` + openingSummary + `",
		"game_over": false
	}`
	lookReply = `{
		"narrative": "Under the crate you find a brass key.",
		"visual_prompt": "brass key in a puddle",
		"time": "23:55",
		"evidence": ["Torn shipping manifest", "Brass key"],
		"suspects": [{"name": "Vinnie Russo", "status": "arrested", "notes": "Caught with the ledger."}],
		"game_over": false
	}`
)

// fakeGameMaster serves OpenAI chat completions. Opening turns get openingReply and every other turn lookReply.
func fakeGameMaster(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"no","type":"invalid_request_error"}}`))
			return
		}
		reply := lookReply
		if strings.Contains(req.Messages[len(req.Messages)-1].Content, `User Input: "START_GAME"`) {
			reply = openingReply
		}
		content, _ := json.Marshal(reply)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[` +
			`{"index":0,"message":{"role":"assistant","content":` + string(content) + `}}]}`))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func testLookupEnv(gameMasterURL string) func(string) (string, bool) {
	env := map[string]string{
		"NOIR_ADDR":            "localhost:0",
		"NOIR_FQDN":            "localhost",
		"NOIR_SQLITE_URL":      ":memory:",
		"NOIR_PPROF_PORT":      "",
		"NOIR_AI_PROVIDER":     "openai",
		"OPENAI_API_KEY":       "test-key",
		"NOIR_OPENAI_BASE_URL": gameMasterURL + "/v1",
		"NOIR_AUTOSAVE_DELAY":  "10ms",
	}
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func startServer(t *testing.T, gameMasterStatus int) (*e2etest.Server, *atomic.Int32) {
	t.Helper()
	gameMaster, calls := fakeGameMaster(t, gameMasterStatus)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	server, err := e2etest.StartServer(ctx, io.Discard, testLookupEnv(gameMaster.URL), run)
	require.NoError(t, err)
	return server, calls
}

func Test_application_home(t *testing.T) {
	server, _ := startServer(t, http.StatusOK)
	ctx := context.Background()
	client := server.Client()

	doc, err := client.GetDoc(ctx, "/")
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("button:contains('Sign in')").Length())
	require.Equal(t, 1, doc.Find("button:contains('Register')").Length())
	require.Equal(t, 4, doc.Find("form[action='/cases']").Length(), "random case plus the three fixed ones")
	require.Equal(t, 0, doc.Find(".case-files").Length(), "anonymous detectives have no case files")

	doc, err = client.Register(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("button:contains('Log out')").Length())
	require.Equal(t, "No case files yet.", strings.TrimSpace(doc.Find(".case-files .empty").Text()))

	doc, err = client.Logout(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("button:contains('Sign in')").Length())

	doc, err = client.Login(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("button:contains('Log out')").Length())
}

func Test_application_caseLifecycle(t *testing.T) {
	server, _ := startServer(t, http.StatusOK)
	ctx := context.Background()
	client := server.Client()

	_, err := client.Register(ctx)
	require.NoError(t, err)

	// Opening a case plays the opening turn and lands on the game page.
	doc, err := client.SubmitFormValues(ctx, "/", "/cases", map[string][]string{"scenario": {"story_docks"}})
	require.NoError(t, err)
	require.Equal(t, "Pier 9", strings.TrimSpace(doc.Find(".location").Text()))
	require.Equal(t, 0, doc.Find(".log-user").Length(), "opening has no detective line")
	require.Contains(t, doc.Find(".log-system").Text(), "A body floats between the pilings.")
	sceneURL, ok := doc.Find("img.scene").Attr("src")
	require.True(t, ok)
	require.True(t, strings.HasPrefix(sceneURL, "https://image.pollinations.ai/prompt/"), sceneURL)

	doc, err = client.SubmitFormValues(ctx, "/game", "/game/turn", map[string][]string{"input": {"look under the crate"}})
	require.NoError(t, err)
	require.Contains(t, doc.Find(".log-user").Text(), "> look under the crate")
	require.Contains(t, doc.Find(".log-system").Last().Text(), "brass key")
	require.Equal(t, "Pier 9", strings.TrimSpace(doc.Find(".location").Text()), "omitted location persists")
	require.Equal(t, "23:55", strings.TrimSpace(doc.Find(".time").Text()))

	doc, err = client.GetDoc(ctx, "/game/dossier")
	require.NoError(t, err)
	require.Equal(t, 2, doc.Find(".evidence li").Length())
	require.Equal(t, "In custody", strings.TrimSpace(doc.Find(".suspect .status").Text()))
	require.Equal(t, 2, doc.Find(".gallery li").Length(), "one photograph per turn")

	doc, err = client.SubmitForm(ctx, "/game", "/game/save")
	require.NoError(t, err)
	require.Equal(t, "Case saved.", strings.TrimSpace(doc.Find(".flash").Text()))
	caseFile := doc.Find(".case-file")
	require.Equal(t, 1, caseFile.Length(), "two saves of one case produce one record")
	require.Equal(t, "The trail leads to the docks", strings.TrimSpace(caseFile.Find("a").Text()))
	caseID, ok := caseFile.Attr("data-case-id")
	require.True(t, ok)

	// Another detective can neither read nor delete the case.
	intruder, err := server.NewClient()
	require.NoError(t, err)
	_, err = intruder.Register(ctx)
	require.NoError(t, err)
	token, err := intruder.CSRFToken(ctx, "/")
	require.NoError(t, err)
	var result apiResult
	status, err := intruder.DoJSON(ctx, http.MethodDelete, "/api/cases/"+caseID, token, nil, &result)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, status)
	require.False(t, result.Success)
	status, err = intruder.DoJSON(ctx, http.MethodGet, "/api/cases/"+caseID, "", nil, &result)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, status)

	// The owner still has it and can resume it.
	doc, err = client.GetDoc(ctx, "/cases/"+caseID)
	require.NoError(t, err)
	require.Contains(t, doc.Find(".log-user").Text(), "> look under the crate")

	doc, err = client.SubmitForm(ctx, "/", "/cases/"+caseID+"/delete")
	require.NoError(t, err)
	require.Equal(t, "Case deleted.", strings.TrimSpace(doc.Find(".flash").Text()))
	require.Equal(t, 0, doc.Find(".case-file").Length())
}

func Test_application_htmxTurn(t *testing.T) {
	server, _ := startServer(t, http.StatusOK)
	ctx := context.Background()
	client := server.Client()

	_, err := client.Register(ctx)
	require.NoError(t, err)
	_, err = client.SubmitFormValues(ctx, "/", "/cases", map[string][]string{"scenario": {"story_docks"}})
	require.NoError(t, err)

	status, body, err := client.SubmitFormHTMX(ctx, "/game", "/game/turn",
		map[string][]string{"input": {"look under the crate"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `id="game-board"`)
	require.Contains(t, body, "brass key")
	require.NotContains(t, body, "<html", "htmx requests get only the board")
}

func Test_application_api(t *testing.T) {
	server, _ := startServer(t, http.StatusOK)
	ctx := context.Background()
	client := server.Client()

	var health healthResponse
	status, err := client.DoJSON(ctx, http.MethodGet, "/api/healthy", "", nil, &health)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, healthResponse{Status: "ok", Scenarios: 3}, health)

	var scenarioList []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	status, err = client.DoJSON(ctx, http.MethodGet, "/api/scenarios", "", nil, &scenarioList)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, scenarioList, 3)

	token, err := client.CSRFToken(ctx, "/")
	require.NoError(t, err)

	var opening apiTurnResponse
	status, err = client.DoJSON(ctx, http.MethodPost, "/api/turn", token,
		apiTurnRequest{State: nil, ScenarioID: "story_express", Input: ""}, &opening)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.False(t, opening.Fallback)
	require.Equal(t, "story_express", opening.State.ScenarioID)
	require.Len(t, opening.State.Logs, 1)
	require.Equal(t, "23:40", opening.State.CurrentTime)

	var next apiTurnResponse
	status, err = client.DoJSON(ctx, http.MethodPost, "/api/turn", token,
		apiTurnRequest{State: &opening.State, ScenarioID: "", Input: "search the crate"}, &next)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, next.State.Logs, 3)
	require.Equal(t, []string{"Torn shipping manifest", "Brass key"}, next.State.Evidence)
	require.Equal(t, models.SuspectArrested, next.State.Suspects[0].Status)

	// An existing case needs an action.
	status, err = client.DoJSON(ctx, http.MethodPost, "/api/turn", token,
		apiTurnRequest{State: &next.State, ScenarioID: "", Input: "  "}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, status)

	// Anonymous saves are no-ops.
	var saved apiResult
	status, err = client.DoJSON(ctx, http.MethodPost, "/api/cases", token, next.State, &saved)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.False(t, saved.Success)

	var cases []models.CaseSummary
	status, err = client.DoJSON(ctx, http.MethodGet, "/api/cases", "", nil, &cases)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, cases)

	_, err = client.Register(ctx)
	require.NoError(t, err)
	token, err = client.CSRFToken(ctx, "/")
	require.NoError(t, err)

	status, err = client.DoJSON(ctx, http.MethodPost, "/api/cases", token, next.State, &saved)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.True(t, saved.Success)
	require.NotNil(t, saved.State)
	require.NotEmpty(t, saved.State.CaseID)
	require.Equal(t, "The trail leads to the docks", saved.State.Title)

	// Saving again updates the same record.
	status, err = client.DoJSON(ctx, http.MethodPost, "/api/cases", token, *saved.State, &saved)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	status, err = client.DoJSON(ctx, http.MethodGet, "/api/cases", "", nil, &cases)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, cases, 1)
	require.Equal(t, models.CaseStatusActive, cases[0].Status)

	var deleted apiResult
	status, err = client.DoJSON(ctx, http.MethodDelete, "/api/cases/"+cases[0].ID, token, nil, &deleted)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.True(t, deleted.Success)

	// Requests without the CSRF token are rejected.
	status, err = client.DoJSON(ctx, http.MethodPost, "/api/turn", "", apiTurnRequest{}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, status)
}

func Test_application_fallback(t *testing.T) {
	server, calls := startServer(t, http.StatusBadRequest)
	ctx := context.Background()
	client := server.Client()

	token, err := client.CSRFToken(ctx, "/")
	require.NoError(t, err)

	var resp apiTurnResponse
	status, err := client.DoJSON(ctx, http.MethodPost, "/api/turn", token, apiTurnRequest{}, &resp)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.True(t, resp.Fallback)
	require.Contains(t, resp.Response.Narrative, "(System Error:")
	require.False(t, resp.Response.GameOver)
	require.Len(t, resp.State.Logs, 1)
	require.True(t, resp.State.Logs[0].Error)
	require.Empty(t, resp.State.Gallery, "fallback turns take no photographs")
	require.Equal(t, int32(1), calls.Load(), "client errors are not retried")
}

func Test_run_invalidConfig(t *testing.T) {
	lookupEnv := func(key string) (string, bool) {
		switch key {
		case "NOIR_AI_PROVIDER":
			return "carrier-pigeon", true
		case "NOIR_SQLITE_URL":
			return ":memory:", true
		default:
			return "", false
		}
	}
	err := run(context.Background(), testhelpers.NewLogger(io.Discard), lookupEnv)
	require.ErrorIs(t, err, ai.ErrUnknownProvider)
}

func Test_webAuthnOrigins(t *testing.T) {
	tests := []struct {
		name string
		cfg  config
		want []string
	}{
		{
			name: "production",
			cfg:  config{FQDN: "noir.example.com", Addr: "0.0.0.0:8080"},
			want: []string{"https://noir.example.com"},
		},
		{
			name: "local development",
			cfg:  config{FQDN: "localhost", Addr: "localhost:4000"},
			want: []string{"https://localhost", "http://localhost:4000"},
		},
		{
			name: "local development on all interfaces",
			cfg:  config{FQDN: "localhost", Addr: "0.0.0.0:4000"},
			want: []string{"https://localhost", "http://0.0.0.0:4000", "http://localhost:4000"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, webAuthnOrigins(tt.cfg))
		})
	}
}

func Test_parseLogLevel(t *testing.T) {
	lookup := func(v string) func(string) (string, bool) {
		return func(string) (string, bool) { return v, v != "" }
	}
	require.Equal(t, slog.LevelInfo, parseLogLevel(lookup("")))
	require.Equal(t, slog.LevelDebug, parseLogLevel(lookup("debug")))
	require.Equal(t, slog.LevelWarn, parseLogLevel(lookup("WARN")))
	require.Equal(t, slog.LevelInfo, parseLogLevel(lookup("loud")))
}

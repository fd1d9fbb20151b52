package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestStatic_KeywordOrder(t *testing.T) {
	s := Static{}
	ctx := context.Background()
	cases := map[string]string{
		"Hello there":                  "Hello! I'm your DoseWise Assistant.",
		"I MISSED DOSE yesterday":      "If you missed a dose",
		"any side effects?":            "Side effects vary",
		"drug interaction check":       "Drug interactions can be serious.",
		"set a reminder":               "You can set up reminders",
		"when should i take medicine?": "Check your **Adherence** page",
	}
	for msg, prefix := range cases {
		if got := s.Reply(ctx, msg); !strings.HasPrefix(got, prefix) {
			t.Errorf("Reply(%q) = %q, want prefix %q", msg, got, prefix)
		}
	}
	if got := s.Reply(ctx, "tell me about aspirin"); got != HelpText {
		t.Errorf("default reply = %q", got)
	}
}

func TestOpenAI_Reply(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Take it with food."}}]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"}, quietLogger())
	if got := o.Reply(context.Background(), "how do I take metformin?"); got != "Take it with food." {
		t.Errorf("reply = %q", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o" || len(gotReq.Messages) != 2 || gotReq.Messages[0].Content != SystemPrompt {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestOpenAI_Failures(t *testing.T) {
	status := http.StatusInternalServerError
	body := `{"error":"boom"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	o := NewOpenAI(Config{BaseURL: srv.URL}, quietLogger())
	if got := o.Reply(context.Background(), "hi"); got != Fallback {
		t.Errorf("error status reply = %q", got)
	}

	status, body = http.StatusOK, `{"choices":[]}`
	if got := o.Reply(context.Background(), "hi"); got != Fallback {
		t.Errorf("empty choices reply = %q", got)
	}

	srv.Close()
	if got := o.Reply(context.Background(), "hi"); got != Fallback {
		t.Errorf("network error reply = %q", got)
	}
}

type fakeGenerator struct {
	text   string
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.config = model, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestGemini_Reply(t *testing.T) {
	fg := &fakeGenerator{text: "Consult your doctor."}
	g := newGemini(fg, Config{}, quietLogger())
	if got := g.Reply(context.Background(), "hello"); got != "Consult your doctor." {
		t.Errorf("reply = %q", got)
	}
	if fg.model != defaultGeminiModel {
		t.Errorf("model = %s", fg.model)
	}
	if fg.config == nil || fg.config.SystemInstruction == nil || fg.config.SystemInstruction.Parts[0].Text != SystemPrompt {
		t.Error("system prompt not sent")
	}

	fg.err = errors.New("quota exceeded")
	if got := g.Reply(context.Background(), "hello"); got != Fallback {
		t.Errorf("error reply = %q", got)
	}
	fg.err, fg.text = nil, ""
	if got := g.Reply(context.Background(), "hello"); got != Fallback {
		t.Errorf("empty reply = %q", got)
	}
}

func TestNew_SelectsProvider(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx, Config{}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.(Static); !ok {
		t.Errorf("default provider = %T", r)
	}
	r, _ = New(ctx, Config{Provider: ProviderOpenAI}, quietLogger())
	if _, ok := r.(*OpenAI); !ok {
		t.Errorf("openai provider = %T", r)
	}
	if _, err := New(ctx, Config{Provider: "oracle"}, quietLogger()); err == nil {
		t.Error("expected error for unknown provider")
	}
}

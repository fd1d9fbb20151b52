package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/starford/dosewise/internal/adherence"
	"github.com/starford/dosewise/internal/interaction"
	"github.com/starford/dosewise/internal/models"
	"github.com/starford/dosewise/internal/testutil"
	"github.com/starford/dosewise/internal/tracker"
)

// A 1x1 transparent PNG.
var pngPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func testServer(t *testing.T) (*Server, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t, time.Date(2026, 7, 10, 8, 0, 0, 0, time.UTC))
	return New(env.Service, nil), env
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_medications":
		result, err = srv.listMedications(ctx, req)
	case "add_medication":
		result, err = srv.addMedication(ctx, req)
	case "log_dose":
		result, err = srv.logDose(ctx, req)
	case "check_interactions":
		result, err = srv.checkInteractions(ctx, req)
	case "adherence_summary":
		result, err = srv.adherenceSummary(ctx, req)
	case "snooze_reminder":
		result, err = srv.snoozeReminder(ctx, req)
	case "ask_assistant":
		result, err = srv.askAssistant(ctx, req)
	case "get_medication_contract":
		result, err = srv.getMedicationContract(ctx, req)
	case "attach_file":
		result, err = srv.attachFile(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func addMed(t *testing.T, srv *Server, name string) models.Medication {
	t.Helper()
	r := callTool(t, srv, "add_medication", map[string]interface{}{"name": name, "dosage": "10mg"})
	if r.IsError {
		t.Fatalf("add %s: %s", name, resultText(r))
	}
	var out struct {
		Medication models.Medication `json:"medication"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	return out.Medication
}

func TestAddAndListMedications(t *testing.T) {
	srv, _ := testServer(t)
	addMed(t, srv, "Warfarin")

	r := callTool(t, srv, "add_medication", map[string]interface{}{
		"name": "Aspirin", "dosage": "81mg", "color": "blue", "schedule": "09:00",
	})
	var out struct {
		Medication   models.Medication     `json:"medication"`
		Interactions []interaction.Finding `json:"interactions"`
	}
	_ = json.Unmarshal([]byte(resultText(r)), &out)
	if out.Medication.Color != models.ColorBlue || len(out.Interactions) != 1 {
		t.Errorf("add result = %+v", out)
	}

	r = callTool(t, srv, "list_medications", map[string]interface{}{})
	var list []tracker.MedicationToday
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[1].Name != "Aspirin" {
		t.Errorf("list = %+v", list)
	}
}

func TestAddMedication_Invalid(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "add_medication", map[string]interface{}{"name": "Aspirin"})
	if !r.IsError {
		t.Error("expected error for missing dosage")
	}
	r = callTool(t, srv, "add_medication", map[string]interface{}{"name": "Aspirin", "dosage": "1mg", "color": "plaid"})
	if !r.IsError {
		t.Error("expected error for unknown color")
	}
}

func TestLogDoseAndSummary(t *testing.T) {
	srv, _ := testServer(t)
	m := addMed(t, srv, "Aspirin")

	r := callTool(t, srv, "log_dose", map[string]interface{}{"medication_id": m.ID, "status": "taken"})
	if r.IsError {
		t.Fatalf("log: %s", resultText(r))
	}
	r = callTool(t, srv, "log_dose", map[string]interface{}{"medication_id": "ghost", "status": "taken"})
	if !r.IsError || !strings.Contains(resultText(r), "not found") {
		t.Errorf("unknown medication = %q", resultText(r))
	}

	r = callTool(t, srv, "adherence_summary", map[string]interface{}{})
	var sum adherence.Summary
	if err := json.Unmarshal([]byte(resultText(r)), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Overall != 100 || sum.Tier != adherence.TierGood || len(sum.Weekly) != 7 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestCheckInteractions(t *testing.T) {
	srv, _ := testServer(t)
	addMed(t, srv, "Ibuprofen")

	r := callTool(t, srv, "check_interactions", map[string]interface{}{"name": "aspirin"})
	if !strings.Contains(resultText(r), "Ibuprofen") {
		t.Errorf("stored set = %q", resultText(r))
	}

	r = callTool(t, srv, "check_interactions", map[string]interface{}{
		"name": "aspirin", "existing": []interface{}{"Tylenol"},
	})
	if resultText(r) != "No known interactions found." {
		t.Errorf("explicit set = %q", resultText(r))
	}
}

func TestSnoozeAndAssistant(t *testing.T) {
	srv, env := testServer(t)

	r := callTool(t, srv, "snooze_reminder", map[string]interface{}{"name": "Aspirin"})
	if r.IsError {
		t.Fatalf("snooze: %s", resultText(r))
	}
	if len(env.Service.Reminders()) != 1 {
		t.Errorf("pending = %+v", env.Service.Reminders())
	}

	r = callTool(t, srv, "ask_assistant", map[string]interface{}{"message": "any side effects?"})
	if !strings.HasPrefix(resultText(r), "Side effects vary") {
		t.Errorf("assistant = %q", resultText(r))
	}
}

func TestResources(t *testing.T) {
	srv, _ := testServer(t)
	ctx := context.Background()

	contents, err := srv.readRulesResource(ctx, mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	eng, err := interaction.Load(strings.NewReader(text))
	if err != nil {
		t.Fatalf("rules resource does not round-trip: %v", err)
	}
	if len(eng.Rules()) != len(interaction.Default().Rules()) {
		t.Errorf("rules = %d", len(eng.Rules()))
	}
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil || raw["rules"] == nil {
		t.Errorf("yaml = %q", text)
	}

	contents, _ = srv.readContractResource(ctx, mcp.ReadResourceRequest{})
	if contents[0].(mcp.TextResourceContents).Text != MedicationContract {
		t.Error("contract resource mismatch")
	}
	if resultText(callTool(t, srv, "get_medication_contract", nil)) != MedicationContract {
		t.Error("contract tool mismatch")
	}
}

func TestAttachFile_DataURI(t *testing.T) {
	srv, env := testServer(t)
	m := addMed(t, srv, "Aspirin")

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel)
	r := callTool(t, srv, "attach_file", map[string]interface{}{
		"medication_id": m.ID, "url": uri, "filename": "rx photo.png",
	})
	if r.IsError {
		t.Fatalf("attach: %s", resultText(r))
	}
	got, _ := env.Service.GetMedication(m.ID)
	if got.Attachment == nil || got.Attachment.FileName != "rx_photo.png" || got.Attachment.MimeType != "image/png" {
		t.Errorf("attachment = %+v", got.Attachment)
	}
	if got.Attachment.Data != uri {
		t.Error("stored data URL differs from input")
	}
}

func TestAttachFile_Rejects(t *testing.T) {
	srv, _ := testServer(t)
	m := addMed(t, srv, "Aspirin")
	png := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel)

	cases := map[string]map[string]interface{}{
		"unknown medication": {"medication_id": "ghost", "url": "data:image/png;base64,AAAA"},
		"not base64":         {"medication_id": m.ID, "url": "data:image/png,plain"},
		"unsupported mime":   {"medication_id": m.ID, "url": "data:text/plain;base64,aGVsbG8="},
		"magic mismatch":     {"medication_id": m.ID, "url": "data:image/png;base64,aGVsbG8="},
		"bad scheme":         {"medication_id": m.ID, "url": "ftp://example.com/a.png"},
		"loopback":           {"medication_id": m.ID, "url": "http://127.0.0.1/a.png"},
		"metadata address":   {"medication_id": m.ID, "url": "http://169.254.169.254/latest/meta-data"},
		"unspecified":        {"medication_id": m.ID, "url": "http://0.0.0.0/a.png"},
		"extension mismatch": {"medication_id": m.ID, "url": png, "filename": "leaflet.pdf"},
		"declared as jpeg":   {"medication_id": m.ID, "url": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(pngPixel)},
	}
	for name, args := range cases {
		if r := callTool(t, srv, "attach_file", args); !r.IsError {
			t.Errorf("%s: expected error, got %q", name, resultText(r))
		}
	}
}

func TestAttachFile_Download(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngPixel)
	}))
	defer ts.Close()

	srv, env := testServer(t)
	srv.allowLoopback = true
	m := addMed(t, srv, "Aspirin")

	r := callTool(t, srv, "attach_file", map[string]interface{}{"medication_id": m.ID, "url": ts.URL + "/leaflet.png"})
	if r.IsError {
		t.Fatalf("attach: %s", resultText(r))
	}
	got, _ := env.Service.GetMedication(m.ID)
	if got.Attachment == nil || got.Attachment.FileName != "leaflet.png" {
		t.Errorf("attachment = %+v", got.Attachment)
	}
}

func TestAttachFile_GeneratedName(t *testing.T) {
	srv, env := testServer(t)
	m := addMed(t, srv, "Aspirin")

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel)
	for _, name := range []string{"", "../../label"} {
		r := callTool(t, srv, "attach_file", map[string]interface{}{"medication_id": m.ID, "url": uri, "filename": name})
		if r.IsError {
			t.Fatalf("attach %q: %s", name, resultText(r))
		}
		got, _ := env.Service.GetMedication(m.ID)
		fn := got.Attachment.FileName
		if !strings.HasSuffix(fn, ".png") || strings.ContainsAny(fn, "/\\") {
			t.Errorf("filename for %q = %q", name, fn)
		}
		if name != "" && fn != "label.png" {
			t.Errorf("filename = %q, want label.png", fn)
		}
	}
}

func TestAttachFile_DownloadIgnoresOctetStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pngPixel)
	}))
	defer ts.Close()

	srv, env := testServer(t)
	srv.allowLoopback = true
	m := addMed(t, srv, "Aspirin")

	r := callTool(t, srv, "attach_file", map[string]interface{}{"medication_id": m.ID, "url": ts.URL + "/download"})
	if r.IsError {
		t.Fatalf("attach: %s", resultText(r))
	}
	got, _ := env.Service.GetMedication(m.ID)
	if got.Attachment.MimeType != "image/png" || !strings.HasSuffix(got.Attachment.FileName, ".png") {
		t.Errorf("attachment = %+v", got.Attachment)
	}
}

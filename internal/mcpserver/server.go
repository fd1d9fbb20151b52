// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes DoseWise tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/starford/dosewise/internal/apperr"
	"github.com/starford/dosewise/internal/assistant"
	"github.com/starford/dosewise/internal/models"
	"github.com/starford/dosewise/internal/tracker"
)

const (
	rulesURI    = "dosewise://interaction-rules"
	contractURI = "dosewise://medication-format"
)

// Server wraps the MCP server with DoseWise tools.
type Server struct {
	mcp       *server.MCPServer
	svc       *tracker.Service
	assistant assistant.Responder

	allowLoopback bool
}

// New creates a new MCP server with all DoseWise tools registered. A nil
// responder falls back to the static keyword table.
func New(svc *tracker.Service, responder assistant.Responder) *Server {
	if responder == nil {
		responder = assistant.Static{}
	}
	s := &Server{svc: svc, assistant: responder}

	s.mcp = server.NewMCPServer(
		"DoseWise",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_medications",
		mcp.WithDescription("List tracked medications with today's dose status and reminder state."),
	), s.listMedications)

	s.mcp.AddTool(mcp.NewTool("add_medication",
		mcp.WithDescription("Add a medication. Returns the stored record and any interactions with "+
			"medications already on the list. Read the contract first via get_medication_contract "+
			"or the dosewise://medication-format resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Medication name, e.g. Aspirin")),
		mcp.WithString("dosage", mcp.Required(), mcp.Description("Dosage text, e.g. 81mg")),
		mcp.WithString("frequency", mcp.Description("once_daily, twice_daily, three_times or as_needed")),
		mcp.WithString("schedule", mcp.Description("Reminder time as HH:MM (24h)")),
		mcp.WithString("color", mcp.Description("Pill color from the fixed palette")),
		mcp.WithString("notes", mcp.Description("Free text notes")),
	), s.addMedication)

	s.mcp.AddTool(mcp.NewTool("log_dose",
		mcp.WithDescription("Record today's dose of a medication as taken or skipped."),
		mcp.WithString("medication_id", mcp.Required(), mcp.Description("ID from list_medications")),
		mcp.WithString("status", mcp.Required(), mcp.Description("taken or skipped")),
	), s.logDose)

	s.mcp.AddTool(mcp.NewTool("check_interactions",
		mcp.WithDescription("Check a drug name against a list of names, or against the tracked "+
			"medications when no list is given."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Drug to check")),
		mcp.WithArray("existing", mcp.WithStringItems(), mcp.Description("Optional names to check against")),
	), s.checkInteractions)

	s.mcp.AddTool(mcp.NewTool("adherence_summary",
		mcp.WithDescription("Overall adherence, the last seven days, trend and per-medication breakdown."),
	), s.adherenceSummary)

	s.mcp.AddTool(mcp.NewTool("snooze_reminder",
		mcp.WithDescription("Remind about a medication again in a few minutes."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Medication name")),
	), s.snoozeReminder)

	s.mcp.AddTool(mcp.NewTool("ask_assistant",
		mcp.WithDescription("Ask the general medication assistant. Answers are not medical advice."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Question for the assistant")),
	), s.askAssistant)

	s.mcp.AddTool(mcp.NewTool("get_medication_contract",
		mcp.WithDescription("Returns the field formats for medications and doses. "+
			"Call this before adding medications to ensure correct values."),
	), s.getMedicationContract)

	s.mcp.AddTool(mcp.NewTool("attach_file",
		mcp.WithDescription("Attach a prescription photo or leaflet to a medication. "+
			"Accepts a data: URI or an http(s) URL."),
		mcp.WithString("medication_id", mcp.Required(), mcp.Description("ID from list_medications")),
		mcp.WithString("url", mcp.Required(), mcp.Description("data: URI or http(s) URL of the file")),
		mcp.WithString("filename", mcp.Description("Optional file name to store")),
	), s.attachFile)

	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Interaction Rules",
			mcp.WithResourceDescription("The active drug-pair interaction table."),
			mcp.WithMIMEType("application/yaml"),
		),
		s.readRulesResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Medication Contract",
			mcp.WithResourceDescription("Field formats for medications and doses."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listMedications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Today()), nil
}

func (s *Server) addMedication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dosage, err := req.RequireString("dosage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := models.MedicationInput{
		Name:      name,
		Dosage:    dosage,
		Frequency: models.Frequency(req.GetString("frequency", "")),
		Schedule:  req.GetString("schedule", ""),
		Color:     models.PillColor(req.GetString("color", "")),
		Notes:     req.GetString("notes", ""),
	}
	m, findings, err := s.svc.AddMedication(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"medication":   m,
		"interactions": findings,
	}), nil
}

func (s *Server) logDose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("medication_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev, err := s.svc.LogDose(ctx, id, models.DoseStatus(status))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("medication not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ev), nil
}

func (s *Server) checkInteractions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	findings := s.svc.CheckCandidate(name, req.GetStringSlice("existing", nil))
	if len(findings) == 0 {
		return mcp.NewToolResultText("No known interactions found."), nil
	}
	return jsonResult(findings), nil
}

func (s *Server) adherenceSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Adherence()), nil
}

func (s *Server) snoozeReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.svc.Snooze(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(task), nil
}

func (s *Server) askAssistant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	msg, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.assistant.Reply(ctx, msg)), nil
}

func (s *Server) getMedicationContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MedicationContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     MedicationContract,
		},
	}, nil
}

func (s *Server) readRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := yaml.Marshal(map[string]any{"rules": s.svc.InteractionRules()})
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode rules: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "application/yaml",
			Text:     string(out),
		},
	}, nil
}

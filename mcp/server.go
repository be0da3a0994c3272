// Package mcp exposes the curator engine as MCP (Model Context Protocol) tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/hyperengineering/curator"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with curator tools.
type Server struct {
	engine    *curator.Engine
	mcpServer *server.MCPServer
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// Tool names.
const (
	ToolEffectiveness = "curator_effectiveness"
	ToolPrune         = "curator_prune"
	ToolOverspecific  = "curator_overspecific_scan"
	ToolDeactivate    = "curator_deactivate"
	ToolPatterns      = "curator_patterns"
	ToolSafetyCheck   = "curator_safety_check"
	ToolBiasCheck     = "curator_bias_check"
)

const (
	serverName    = "curator"
	serverVersion = "1.0.0"
)

// NewServer creates a new MCP server with curator tools registered.
func NewServer(engine *curator.Engine) *Server {
	s := &Server{engine: engine}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	return s
}

// Run serves MCP over stdin/stdout until the client disconnects.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: ToolEffectiveness, Description: "Score every active seed from usage and feedback"},
		{Name: ToolPrune, Description: "Deactivate heavily used seeds scoring below a threshold"},
		{Name: ToolOverspecific, Description: "Find context-bound seeds and optionally repair or deactivate them"},
		{Name: ToolDeactivate, Description: "Deactivate seeds by ID"},
		{Name: ToolPatterns, Description: "Mine recent decision and API logs for learning patterns"},
		{Name: ToolSafetyCheck, Description: "Classify user input for prompt-injection and policy risk"},
		{Name: ToolBiasCheck, Description: "Audit a generated response for demographic or cultural bias"},
	}
}

// CallTool executes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case ToolEffectiveness:
		return s.handleEffectiveness(ctx, args)
	case ToolPrune:
		return s.handlePrune(ctx, args)
	case ToolOverspecific:
		return s.handleOverspecific(ctx, args)
	case ToolDeactivate:
		return s.handleDeactivate(ctx, args)
	case ToolPatterns:
		return s.handlePatterns(ctx, args)
	case ToolSafetyCheck:
		return s.handleSafetyCheck(ctx, args)
	case ToolBiasCheck:
		return s.handleBiasCheck(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(ToolEffectiveness,
		mcp.WithDescription("Score every active seed (0-100) from its usage ledger and like/dislike feedback. Returns profiles sorted by score, highest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of profiles to return (default: all)"),
		),
		mcp.WithBoolean("lowest_first",
			mcp.Description("Return the weakest seeds first"),
		),
	), s.wrap(s.handleEffectiveness))

	s.mcpServer.AddTool(mcp.NewTool(ToolPrune,
		mcp.WithDescription("Deactivate seeds whose effectiveness score is below the threshold and that have been used more than 5 times. Deactivation is soft and idempotent."),
		mcp.WithNumber("threshold",
			mcp.Description("Score threshold 0-100 (default: configured threshold, 20)"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Report the seeds that would be pruned without changing them"),
		),
	), s.wrap(s.handlePrune))

	s.mcpServer.AddTool(mcp.NewTool(ToolOverspecific,
		mcp.WithDescription("Find seeds bound to a time of day or prior event. Without apply, returns flagged seeds with proposed rewrites. With apply, persists fixable rewrites and deactivates the rest."),
		mcp.WithBoolean("apply",
			mcp.Description("Persist repairs and deactivations (default: false)"),
		),
	), s.wrap(s.handleOverspecific))

	s.mcpServer.AddTool(mcp.NewTool(ToolDeactivate,
		mcp.WithDescription("Deactivate one or more seeds by ID on operator request."),
		mcp.WithArray("ids",
			mcp.Description("Seed IDs to deactivate"),
			mcp.WithStringItems(),
			mcp.Required(),
		),
	), s.wrap(s.handleDeactivate))

	s.mcpServer.AddTool(mcp.NewTool(ToolPatterns,
		mcp.WithDescription("Mine the most recent decision and API collaboration logs for recurring failures, success factors, user preferences and peak hours."),
	), s.wrap(s.handlePatterns))

	s.mcpServer.AddTool(mcp.NewTool(ToolSafetyCheck,
		mcp.WithDescription("Classify user input as allow, review or block. Fails open: when the classifier is unavailable the decision is allow and the error field is set."),
		mcp.WithString("text",
			mcp.Description("User input to classify"),
			mcp.Required(),
		),
	), s.wrap(s.handleSafetyCheck))

	s.mcpServer.AddTool(mcp.NewTool(ToolBiasCheck,
		mcp.WithDescription("Audit a generated response for gender, age or cultural bias."),
		mcp.WithString("response",
			mcp.Description("Generated response to audit"),
			mcp.Required(),
		),
		mcp.WithString("user_input",
			mcp.Description("User input the response answers"),
		),
		mcp.WithBoolean("heuristic",
			mcp.Description("Use the local pattern detector instead of the classifier"),
		),
	), s.wrap(s.handleBiasCheck))
}

type handler func(ctx context.Context, args map[string]any) (*ToolResult, error)

func (s *Server) wrap(h handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

// Internal handlers

func (s *Server) handleEffectiveness(ctx context.Context, args map[string]any) (*ToolResult, error) {
	profiles, err := s.engine.ScanEffectiveness(ctx)
	if err != nil {
		return errorResult("effectiveness scan failed", err), nil
	}

	if lowest, _ := args["lowest_first"].(bool); lowest {
		for i, j := 0, len(profiles)-1; i < j; i, j = i+1, j-1 {
			profiles[i], profiles[j] = profiles[j], profiles[i]
		}
	}
	if limit, ok := args["limit"].(float64); ok && limit > 0 && int(limit) < len(profiles) {
		profiles = profiles[:int(limit)]
	}
	return jsonResult(profiles)
}

func (s *Server) handlePrune(ctx context.Context, args map[string]any) (*ToolResult, error) {
	threshold := math.NaN()
	if v, ok := args["threshold"].(float64); ok {
		threshold = v
	}
	dryRun, _ := args["dry_run"].(bool)

	if dryRun {
		if math.IsNaN(threshold) {
			threshold = s.engine.PruneThreshold()
		}
		plan, err := s.engine.PlanPrune(ctx, threshold)
		if err != nil {
			return errorResult("prune plan failed", err), nil
		}
		return jsonResult(plan)
	}

	var (
		n   int
		err error
	)
	if math.IsNaN(threshold) {
		n, err = s.engine.PruneDefault(ctx)
	} else {
		n, err = s.engine.Prune(ctx, threshold)
	}
	if err != nil {
		return errorResult("prune failed", err), nil
	}
	return &ToolResult{Content: fmt.Sprintf("Pruned %d seed(s)", n)}, nil
}

func (s *Server) handleOverspecific(ctx context.Context, args map[string]any) (*ToolResult, error) {
	apply, _ := args["apply"].(bool)
	if !apply {
		entries, err := s.engine.FindOverspecific(ctx, nil)
		if err != nil {
			return errorResult("overspecificity scan failed", err), nil
		}
		return jsonResult(entries)
	}

	report, err := s.engine.SweepOverspecific(ctx, nil, curator.SweepOptions{})
	if err != nil {
		return errorResult("overspecificity sweep failed", err), nil
	}
	return jsonResult(report)
}

func (s *Server) handleDeactivate(ctx context.Context, args map[string]any) (*ToolResult, error) {
	ids := toStringSlice(args["ids"])
	n, err := s.engine.DeactivateSeeds(ctx, ids)
	if err != nil {
		var ve *curator.ValidationError
		if errors.As(err, &ve) {
			return &ToolResult{Content: "ids is required", IsError: true}, nil
		}
		return errorResult("deactivate failed", err), nil
	}
	return &ToolResult{Content: fmt.Sprintf("Deactivated %d of %d seed(s)", n, len(ids))}, nil
}

func (s *Server) handlePatterns(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	insights, err := s.engine.MinePatterns(ctx)
	if err != nil {
		return errorResult("pattern mining failed", err), nil
	}
	return jsonResult(insights)
}

func (s *Server) handleSafetyCheck(ctx context.Context, args map[string]any) (*ToolResult, error) {
	text, ok := args["text"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return &ToolResult{Content: "text is required", IsError: true}, nil
	}
	return jsonResult(s.engine.CheckPromptSafety(ctx, text))
}

func (s *Server) handleBiasCheck(ctx context.Context, args map[string]any) (*ToolResult, error) {
	response, ok := args["response"].(string)
	if !ok || strings.TrimSpace(response) == "" {
		return &ToolResult{Content: "response is required", IsError: true}, nil
	}
	userInput, _ := args["user_input"].(string)

	if heuristic, _ := args["heuristic"].(bool); heuristic {
		return jsonResult(curator.DetectBiasHeuristic(response))
	}
	return jsonResult(s.engine.CheckForBias(ctx, userInput, response))
}

func errorResult(prefix string, err error) *ToolResult {
	return &ToolResult{Content: fmt.Sprintf("%s: %v", prefix, err), IsError: true}
}

func jsonResult(v any) (*ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &ToolResult{Content: string(data)}, nil
}

// toStringSlice converts various array types to []string.
// Handles []any, []string, and nil.
func toStringSlice(v any) []string {
	switch arr := v.(type) {
	case []string:
		return arr
	case []any:
		result := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}

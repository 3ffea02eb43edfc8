package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/jobtrail/internal/parser"
	"github.com/kalambet/jobtrail/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store  *storage.Store
	Parser JobParser
}

// NewMCPServer creates an MCP server exposing the tracker to agent clients.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"jobtrail",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("jobtrail is a personal job-application tracker: parse postings, track applications, inspect the board."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("parse_job_post",
			mcp.WithDescription("Parse a job posting from a URL or pasted text into structured fields."),
			mcp.WithString("url", mcp.Description("Job posting URL")),
			mcp.WithString("text", mcp.Description("Pasted job posting text (alternative to url)")),
		),
		mcpParseJobPost(deps),
	)

	s.AddTool(
		mcp.NewTool("add_job",
			mcp.WithDescription("Create a tracked job application and queue its processing pipeline."),
			mcp.WithString("url", mcp.Description("Job posting URL")),
			mcp.WithString("text", mcp.Description("Pasted job posting text (alternative to url)")),
		),
		mcpAddJob(deps),
	)

	s.AddTool(
		mcp.NewTool("list_jobs",
			mcp.WithDescription("List tracked job applications with status and match score."),
		),
		mcpListJobs(deps),
	)

	s.AddTool(
		mcp.NewTool("get_job",
			mcp.WithDescription("Get a single tracked job application by ID."),
			mcp.WithString("id", mcp.Description("Job ID"), mcp.Required()),
		),
		mcpGetJob(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"jobs://board",
			"Application Board",
			mcp.WithResourceDescription("All tracked applications grouped by kanban status"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceBoard(deps),
	)

	return s
}

func mcpParseJobPost(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url := req.GetString("url", "")
		text := req.GetString("text", "")

		result, err := deps.Parser.ParseJobPost(ctx, parser.ParseRequest{URL: url, Text: text})
		if err != nil {
			var verr *parser.ValidationError
			if errors.As(err, &verr) {
				b, merr := json.Marshal(map[string]any{
					"error":     verr.Message,
					"code":      verr.Code,
					"extracted": toParseJobResponse(verr.Result),
				})
				if merr != nil {
					return mcpError(fmt.Sprintf("parse failed: %v", verr)), nil
				}
				return mcpError(string(b)), nil
			}
			return mcpError(fmt.Sprintf("parse failed: %v", err)), nil
		}

		b, err := json.Marshal(toParseJobResponse(result))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddJob(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url := req.GetString("url", "")
		text := req.GetString("text", "")
		if (url == "") == (text == "") {
			return mcpError("provide exactly one of url or text"), nil
		}

		job := storage.Job{
			ID:        uuid.New().String(),
			InputType: storage.InputText,
		}
		if url != "" {
			job.InputType = storage.InputURL
			job.OriginalURL = url
			job.InputContent = url
		} else {
			job.InputContent = text
		}

		if err := deps.Store.CreateJob(job); err != nil {
			return mcpError(fmt.Sprintf("failed to create job: %v", err)), nil
		}
		if err := deps.Store.EnqueueTasks(storage.StandardTaskSet(job.ID)); err != nil {
			return mcpError(fmt.Sprintf("created job but failed to queue pipeline: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Created job %s with 6 queued tasks", job.ID)), nil
	}
}

func mcpListJobs(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobs, err := deps.Store.ListJobs()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list jobs: %v", err)), nil
		}

		type jobSummary struct {
			ID              string `json:"id"`
			CompanyName     string `json:"company_name,omitempty"`
			PositionTitle   string `json:"position_title,omitempty"`
			Status          string `json:"status"`
			MatchPercentage int    `json:"match_percentage"`
		}

		summaries := make([]jobSummary, len(jobs))
		for i, j := range jobs {
			summaries[i] = jobSummary{
				ID:              j.ID,
				CompanyName:     j.CompanyName,
				PositionTitle:   j.PositionTitle,
				Status:          string(j.Status),
				MatchPercentage: j.MatchPercentage,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal jobs: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetJob(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		job, err := deps.Store.GetJob(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get job: %v", err)), nil
		}

		b, err := json.Marshal(toJobResponse(job))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal job: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceBoard(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jobs, err := deps.Store.ListJobs()
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs: %w", err)
		}

		board := make(map[string][]jobResponse)
		for _, j := range jobs {
			board[string(j.Status)] = append(board[string(j.Status)], toJobResponse(j))
		}

		b, err := json.Marshal(board)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal board: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

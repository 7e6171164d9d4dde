package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/querygate/querygate/internal/admission"
)

func (s *Server) handleListTools() (*ListToolsResult, *Error) {
	document := s.svc.Family() == admission.FamilyDocument

	queryDesc := "Execute a read-only SQL query (SELECT, SHOW, EXPLAIN only)"
	queryPayloadDesc := "The SQL statement to execute"
	if document {
		queryDesc = "Execute a read-only find query as a JSON object with optional filter, sort and projection"
		queryPayloadDesc = "JSON find spec, e.g. {\"filter\": {\"cuisine\": \"Italian\"}}"
	}

	tools := []Tool{
		{
			Name:        "list_objects",
			Description: "List the tables or collections available in the configured database",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        "describe_schema",
			Description: "Describe the columns or fields of one table or collection",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"target": {Type: "string", Description: "Table or collection name"},
				},
				Required: []string{"target"},
			},
		},
		{
			Name:        "query",
			Description: queryDesc,
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"payload": {Type: "string", Description: queryPayloadDesc},
					"target":  {Type: "string", Description: "Collection name (document backends only)"},
					"limit":   {Type: "integer", Description: "Optional row limit, capped at the configured maximum"},
				},
				Required: []string{"payload"},
			},
		},
		{
			Name:        "count",
			Description: "Count rows or documents in one table or collection",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"target": {Type: "string", Description: "Table or collection name"},
					"filter": {Type: "string", Description: "Optional JSON filter (document backends only)"},
				},
				Required: []string{"target"},
			},
		},
	}

	if document {
		tools = append(tools, Tool{
			Name:        "aggregate",
			Description: "Run a read-only aggregation pipeline (write stages such as $out and $merge are rejected)",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"target":   {Type: "string", Description: "Collection name"},
					"pipeline": {Type: "string", Description: "JSON array of pipeline stages"},
				},
				Required: []string{"target", "pipeline"},
			},
		})
	}

	return &ListToolsResult{Tools: tools}, nil
}

type toolArguments struct {
	Target   string          `json:"target"`
	Payload  string          `json:"payload"`
	Limit    int             `json:"limit"`
	Filter   string          `json:"filter"`
	Pipeline json.RawMessage `json:"pipeline"`
}

func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage) (*CallToolResult, *Error) {
	var call CallToolParams
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, &Error{Code: InvalidParams, Message: "Invalid parameters", Data: err.Error()}
	}

	var args toolArguments
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, &Error{Code: InvalidParams, Message: "Invalid tool arguments", Data: err.Error()}
		}
	}

	switch call.Name {
	case "list_objects":
		return s.callListObjects(ctx)
	case "describe_schema":
		return s.callDescribe(ctx, args)
	case "query":
		return s.callQuery(ctx, args)
	case "aggregate":
		return s.callAggregate(ctx, args)
	case "count":
		return s.callCount(ctx, args)
	default:
		return nil, &Error{Code: MethodNotFound, Message: fmt.Sprintf("Unknown tool: %s", call.Name)}
	}
}

func (s *Server) callListObjects(ctx context.Context) (*CallToolResult, *Error) {
	names, err := s.svc.ListObjects(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(names)
}

func (s *Server) callDescribe(ctx context.Context, args toolArguments) (*CallToolResult, *Error) {
	if args.Target == "" {
		return nil, &Error{Code: InvalidParams, Message: "Missing required 'target' argument"}
	}
	schema, err := s.svc.DescribeSchema(ctx, args.Target)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(schema)
}

func (s *Server) callQuery(ctx context.Context, args toolArguments) (*CallToolResult, *Error) {
	if args.Payload == "" {
		return nil, &Error{Code: InvalidParams, Message: "Missing required 'payload' argument"}
	}
	envelope, err := s.svc.Query(ctx, args.Target, args.Payload, args.Limit)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(envelope)
}

func (s *Server) callAggregate(ctx context.Context, args toolArguments) (*CallToolResult, *Error) {
	if args.Target == "" || len(args.Pipeline) == 0 {
		return nil, &Error{Code: InvalidParams, Message: "Missing required 'target' or 'pipeline' argument"}
	}

	var stages []admission.Stage
	if err := json.Unmarshal(args.Pipeline, &stages); err != nil {
		// Clients sometimes double-encode the pipeline as a JSON string.
		var raw string
		if err2 := json.Unmarshal(args.Pipeline, &raw); err2 != nil || json.Unmarshal([]byte(raw), &stages) != nil {
			return nil, &Error{Code: InvalidParams, Message: "Pipeline must be a JSON array of stages", Data: err.Error()}
		}
	}

	envelope, err := s.svc.Aggregate(ctx, args.Target, stages)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(envelope)
}

func (s *Server) callCount(ctx context.Context, args toolArguments) (*CallToolResult, *Error) {
	if args.Target == "" {
		return nil, &Error{Code: InvalidParams, Message: "Missing required 'target' argument"}
	}

	var filter map[string]any
	if args.Filter != "" {
		if err := json.Unmarshal([]byte(args.Filter), &filter); err != nil {
			return nil, &Error{Code: InvalidParams, Message: "Filter must be a JSON object", Data: err.Error()}
		}
	}

	count, err := s.svc.Count(ctx, args.Target, filter)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(map[string]any{"target": args.Target, "count": count})
}

func (s *Server) handleListResources(ctx context.Context) (*ListResourcesResult, *Error) {
	names, err := s.svc.ListObjects(ctx)
	if err != nil {
		return nil, &Error{Code: InternalError, Message: fmt.Sprintf("Failed to list objects: %v", err)}
	}

	scheme := string(s.svc.Family())
	resources := make([]Resource, 0, len(names))
	for _, name := range names {
		resources = append(resources, Resource{
			URI:      fmt.Sprintf("%s://%s/schema", scheme, name),
			Name:     fmt.Sprintf("Schema for %q", name),
			MimeType: "application/json",
		})
	}
	return &ListResourcesResult{Resources: resources}, nil
}

func (s *Server) handleReadResource(ctx context.Context, params json.RawMessage) (*ReadResourceResult, *Error) {
	var read ReadResourceParams
	if err := json.Unmarshal(params, &read); err != nil {
		return nil, &Error{Code: InvalidParams, Message: "Invalid parameters", Data: err.Error()}
	}

	scheme := string(s.svc.Family()) + "://"
	if !strings.HasPrefix(read.URI, scheme) {
		return nil, &Error{Code: InvalidParams, Message: fmt.Sprintf("Resource URI must start with %s", scheme)}
	}
	target := strings.TrimSuffix(strings.TrimPrefix(read.URI, scheme), "/schema")
	if target == "" {
		return nil, &Error{Code: InvalidParams, Message: "Resource URI names no object"}
	}

	schema, err := s.svc.DescribeSchema(ctx, target)
	if err != nil {
		return nil, &Error{Code: InternalError, Message: fmt.Sprintf("Failed to read schema: %v", err)}
	}

	text, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, &Error{Code: InternalError, Message: fmt.Sprintf("Failed to marshal schema: %v", err)}
	}

	return &ReadResourceResult{
		Contents: []ResourceContent{{
			URI:      read.URI,
			MimeType: "application/json",
			Text:     string(text),
		}},
	}, nil
}

// toolError surfaces a taxonomy failure to the MCP client as a tool-level
// error rather than a protocol fault: the request was well-formed, the
// operation was refused or failed.
func toolError(err error) *CallToolResult {
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
}

func toolJSON(v any) (*CallToolResult, *Error) {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, &Error{Code: InternalError, Message: fmt.Sprintf("Failed to marshal result: %v", err)}
	}
	return &CallToolResult{Content: []Content{{Type: "text", Text: string(text)}}}, nil
}

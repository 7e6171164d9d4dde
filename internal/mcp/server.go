package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/querygate/querygate/internal/admission"
	"github.com/querygate/querygate/internal/result"
)

// Service is the operation surface the transport needs from the gateway.
type Service interface {
	Family() admission.Family
	ListObjects(ctx context.Context) ([]string, error)
	DescribeSchema(ctx context.Context, target string) (*result.Schema, error)
	Query(ctx context.Context, target, payload string, limit int) (*result.Envelope, error)
	Aggregate(ctx context.Context, target string, stages []admission.Stage) (*result.Envelope, error)
	Count(ctx context.Context, target string, filter map[string]any) (int64, error)
}

// Server speaks MCP over a line-delimited JSON-RPC stream.
type Server struct {
	svc Service
	in  io.Reader
	out io.Writer
	log *slog.Logger
}

// NewServer wires the transport to a service. in and out are normally
// stdin and stdout.
func NewServer(svc Service, in io.Reader, out io.Writer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{svc: svc, in: in, out: out, log: log}
}

// Run reads requests until EOF or context cancellation.
func (s *Server) Run(ctx context.Context) error {
	reader := bufio.NewReader(s.in)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading request: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		resp := s.handleMessage(ctx, []byte(line))
		if resp == nil {
			continue
		}
		payload, err := json.Marshal(resp)
		if err != nil {
			s.log.Error("marshaling response", slog.String("error", err.Error()))
			continue
		}
		if _, err := fmt.Fprintln(s.out, string(payload)); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return &Response{
			JSONRPC: "2.0",
			Error:   &Error{Code: ParseError, Message: "Parse error", Data: err.Error()},
		}
	}
	if req.JSONRPC != "2.0" {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &Error{Code: InvalidRequest, Message: "Invalid JSON-RPC version"},
		}
	}
	return s.handleRequest(ctx, &req)
}

func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	var res any
	var rpcErr *Error

	switch req.Method {
	case "initialize":
		res, rpcErr = s.handleInitialize()
	case "initialized":
		// Notification, no response.
		return nil
	case "tools/list":
		res, rpcErr = s.handleListTools()
	case "tools/call":
		res, rpcErr = s.handleCallTool(ctx, req.Params)
	case "resources/list":
		res, rpcErr = s.handleListResources(ctx)
	case "resources/read":
		res, rpcErr = s.handleReadResource(ctx, req.Params)
	case "ping":
		res = map[string]any{}
	default:
		rpcErr = &Error{Code: MethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)}
	}

	return &Response{JSONRPC: "2.0", ID: req.ID, Result: res, Error: rpcErr}
}

func (s *Server) handleInitialize() (*InitializeResult, *Error) {
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: Capabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    s.serverName(),
			Version: ServerVersion,
		},
	}, nil
}

func (s *Server) serverName() string {
	return fmt.Sprintf("%s-readonly-gateway", s.svc.Family())
}

package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"wads/internal/adapter/media"
	"wads/internal/domain"
	"wads/internal/infra/tracer"
)

// Execute is the shared tool execution pipeline: span, params unmarshal,
// handler dispatch, result formatting. Handler errors become error tool
// results fed back to the model, never Go-level failures.
func Execute[P any](
	ctx context.Context,
	spanName string,
	logger *slog.Logger,
	rawParams json.RawMessage,
	handler func(ctx context.Context, span trace.Span, params P) (any, error),
) (*domain.ToolResult, error) {
	ctx, span := tracer.StartSpan(ctx, spanName,
		trace.WithAttributes(tracer.StringAttr("tool.name", spanName)),
	)
	defer span.End()

	var p P
	if err := json.Unmarshal(rawParams, &p); err != nil {
		tracer.RecordError(span, err)
		return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("invalid params: %v", err)}, nil
	}

	result, err := handler(ctx, span, p)
	if err != nil {
		tracer.RecordError(span, err)
		logger.Warn(spanName+" failed", "error", err)
		return &domain.ToolResult{IsError: true, Content: friendlyError(err)}, nil
	}

	return formatResult(span, result)
}

// friendlyError rewrites backend failures into text the model can relay to
// the user without leaking transport details.
func friendlyError(err error) string {
	if errors.Is(err, media.ErrUnreachable) {
		return err.Error() + ". The service may be down; suggest the user check the server."
	}
	var svcErr *media.ServiceError
	if errors.As(err, &svcErr) {
		return fmt.Sprintf("%s rejected the request (HTTP %d)", svcErr.Service, svcErr.StatusCode)
	}
	return err.Error()
}

// formatResult converts the handler's return value into a ToolResult.
// Strings pass through; everything else is rendered as indented JSON.
func formatResult(span trace.Span, result any) (*domain.ToolResult, error) {
	switch v := result.(type) {
	case *domain.ToolResult:
		if v.IsError {
			tracer.RecordError(span, errors.New(v.Content))
		} else {
			tracer.SetOK(span)
		}
		return v, nil
	case string:
		tracer.SetOK(span)
		return &domain.ToolResult{Content: v}, nil
	default:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			tracer.RecordError(span, err)
			return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("failed to format response: %v", err)}, nil
		}
		tracer.SetOK(span)
		return &domain.ToolResult{Content: string(data)}, nil
	}
}

// errorResult builds an error tool result without failing the call.
func errorResult(format string, args ...any) *domain.ToolResult {
	return &domain.ToolResult{IsError: true, Content: fmt.Sprintf(format, args...)}
}

// requireAdmin gates admin-only tools on the requester identity carried in
// the context.
func requireAdmin(ctx context.Context) *domain.ToolResult {
	if !domain.RequesterFromContext(ctx).IsAdmin {
		return errorResult("permission denied: this action requires an admin")
	}
	return nil
}

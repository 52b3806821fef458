package realtime

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// Publisher pushes project lifecycle events over Supabase so clients that
// subscribe get updates without polling. A nil Publisher is valid and drops
// all events; polling GET /status remains the contract of record.
type Publisher struct {
	client *supabase.Client
	logger *zap.Logger
}

func NewPublisher(supabaseURL, key string, logger *zap.Logger) (*Publisher, error) {
	client, err := supabase.NewClient(supabaseURL, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Publisher{client: client, logger: logger}, nil
}

func (p *Publisher) PublishProjectEvent(projectID int64, event string, payload map[string]any) {
	if p == nil {
		return
	}
	// Row updates already trigger postgres_changes subscriptions; explicit
	// broadcast is not exposed by the Go client yet, so log the event for
	// traceability.
	p.logger.Debug("project event",
		zap.Int64("project_id", projectID),
		zap.String("event", event),
		zap.Any("payload", payload))
}

func StatusChangedPayload(projectID int64, status string, progress int) map[string]any {
	return map[string]any{
		"project_id": projectID,
		"status":     status,
		"progress":   progress,
	}
}

func CompletedPayload(projectID int64, outputFiles map[string]string) map[string]any {
	return map[string]any{
		"project_id":   projectID,
		"status":       "completed",
		"progress":     100,
		"output_files": outputFiles,
	}
}

func FailedPayload(projectID int64, errorMsg string) map[string]any {
	return map[string]any{
		"project_id": projectID,
		"status":     "failed",
		"error":      errorMsg,
	}
}

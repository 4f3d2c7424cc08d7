// Package mqhandler holds the worker-side consumers that turn pipeline
// events into audit log rows.
package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	contracts "inboxpilot/contracts/mq"
	"inboxpilot/internal/model"
	"inboxpilot/pkg/util"
)

type LogStore interface {
	Insert(ctx context.Context, log *model.PipelineLog) error
}

// PipelineLogHandler records observed pipeline events. Deliveries can
// repeat (publisher retries, requeues), so each event is deduped before
// writing.
type PipelineLogHandler struct {
	logs    LogStore
	deduper *util.Deduper
	logger  *zap.Logger
}

func NewPipelineLogHandler(logs LogStore, deduper *util.Deduper, logger *zap.Logger) *PipelineLogHandler {
	return &PipelineLogHandler{logs: logs, deduper: deduper, logger: logger}
}

// HandleItemScored consumes item.scored events.
func (h *PipelineLogHandler) HandleItemScored(ctx context.Context, data json.RawMessage) error {
	var payload contracts.ItemScoredPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("invalid item.scored payload: %w", err)
	}

	if h.deduper != nil {
		key := fmt.Sprintf("%d:%d:%d", payload.UserID, payload.ItemID, payload.ScoredAt.UnixNano())
		if !h.deduper.AcquireOnce(ctx, "log:item.scored", key) {
			return nil
		}
	}

	itemID := payload.ItemID
	return h.logs.Insert(ctx, &model.PipelineLog{
		UserID: payload.UserID,
		ItemID: &itemID,
		Event:  contracts.RoutingKeyItemScored,
		Message: fmt.Sprintf("%s item scored %.1f (%s)",
			payload.Source, payload.FinalScore, payload.Tier),
	})
}

// HandleDigestGenerated consumes digest.generated events.
func (h *PipelineLogHandler) HandleDigestGenerated(ctx context.Context, data json.RawMessage) error {
	var payload contracts.DigestGeneratedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("invalid digest.generated payload: %w", err)
	}

	if h.deduper != nil {
		key := fmt.Sprintf("%d:%s:%s", payload.UserID, payload.WindowType, payload.WindowKey)
		if !h.deduper.AcquireOnce(ctx, "log:digest.generated", key) {
			return nil
		}
	}

	return h.logs.Insert(ctx, &model.PipelineLog{
		UserID: payload.UserID,
		Event:  contracts.RoutingKeyDigestGenerated,
		Message: fmt.Sprintf("%s digest for %s with %d items",
			payload.WindowType, payload.WindowKey, payload.ItemCount),
	})
}

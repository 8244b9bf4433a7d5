package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/service"
)

type CodePurgeHandler struct {
	linking *service.LinkingService
	logger  *zap.Logger
}

func NewCodePurgeHandler(linking *service.LinkingService, logger *zap.Logger) *CodePurgeHandler {
	return &CodePurgeHandler{
		linking: linking,
		logger:  logger.Named("CodePurgeHandler"),
	}
}

func (h *CodePurgeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeCodePurge {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p CodePurgePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for code purge task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v", err)
	}

	h.logger.Info("Processing expired verification code purge...")

	purged, err := h.linking.PurgeExpired(ctx)
	if err != nil {
		h.logger.Error("Failed to purge expired verification codes", zap.Error(err))
		return fmt.Errorf("purging expired codes: %w", err)
	}

	h.logger.Info("Verification code purge finished", zap.Int64("purged", purged))
	return nil
}

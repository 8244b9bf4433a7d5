package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeCodePurge = "verification:code:purge"
)

type CodePurgePayload struct{}

func NewCodePurgeTask(opts ...asynq.Option) (*asynq.Task, error) {
	payload := CodePurgePayload{}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	uniqueOpt := asynq.Unique(1 * time.Hour)
	allOpts := append(opts, uniqueOpt)

	return asynq.NewTask(TypeCodePurge, payloadBytes, allOpts...), nil
}

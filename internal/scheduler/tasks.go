package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSuccessionSweep = "succession.sweep"

type SuccessionSweepPayload struct {
	OrganizationID string `json:"organizationId"`
}

func NewSuccessionSweepTask(payload SuccessionSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSuccessionSweep, data), nil
}

func ParseSuccessionSweepPayload(task *asynq.Task) (SuccessionSweepPayload, error) {
	var payload SuccessionSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SuccessionSweepPayload{}, err
	}
	return payload, nil
}

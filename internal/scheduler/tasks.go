package scheduler

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

const TaskFollowUpDue = "followups.due"

type FollowUpDuePayload struct {
	LeadID    string `json:"leadId"`
	Token     string `json:"token"`
	Kind      string `json:"kind"`
	ForStatus string `json:"forStatus"`
}

func NewFollowUpDueTask(payload FollowUpDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowUpDue, data), nil
}

func ParseFollowUpDuePayload(task *asynq.Task) (FollowUpDuePayload, error) {
	var payload FollowUpDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowUpDuePayload{}, err
	}
	if payload.LeadID == "" || payload.Token == "" {
		return FollowUpDuePayload{}, errors.New("follow-up task needs a lead id and token")
	}
	return payload, nil
}

package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/perflab/internal/domain"
	"github.com/hibiken/asynq"
)

const (
	TypeUpsertAttachment = "attachment:upsert"
	TypeDeleteAttachment = "attachment:delete"
)

type UpsertAttachmentPayload struct {
	RequestID   string            `json:"request_id"`
	Attachment  domain.Attachment `json:"attachment"`
	CallbackURL string            `json:"callback_url,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
}

type DeleteAttachmentPayload struct {
	RequestID    string    `json:"request_id"`
	AttachmentID int64     `json:"attachment_id"`
	CallbackURL  string    `json:"callback_url,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}

func NewUpsertAttachmentTask(payload UpsertAttachmentPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal upsert payload: %w", err)
	}
	return asynq.NewTask(TypeUpsertAttachment, body), nil
}

func ParseUpsertAttachmentPayload(task *asynq.Task) (UpsertAttachmentPayload, error) {
	var payload UpsertAttachmentPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return UpsertAttachmentPayload{}, fmt.Errorf("unmarshal upsert payload: %w", err)
	}
	return payload, nil
}

func NewDeleteAttachmentTask(payload DeleteAttachmentPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal delete payload: %w", err)
	}
	return asynq.NewTask(TypeDeleteAttachment, body), nil
}

func ParseDeleteAttachmentPayload(task *asynq.Task) (DeleteAttachmentPayload, error) {
	var payload DeleteAttachmentPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DeleteAttachmentPayload{}, fmt.Errorf("unmarshal delete payload: %w", err)
	}
	return payload, nil
}

package store

import (
	"context"
	"errors"

	"github.com/dunamismax/perflab/internal/domain"
)

var ErrAttachmentNotFound = errors.New("attachment not found")

type AttachmentStore interface {
	Get(ctx context.Context, id int64) (domain.Attachment, bool, error)
	// List returns the attachments that exist, in the order of ids.
	List(ctx context.Context, ids []int64) ([]domain.Attachment, error)
	Upsert(ctx context.Context, att domain.Attachment) error
	Delete(ctx context.Context, id int64) error
}

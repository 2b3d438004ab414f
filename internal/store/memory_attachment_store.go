package store

import (
	"context"
	"sync"
	"time"

	"github.com/dunamismax/perflab/internal/domain"
)

type MemoryAttachmentStore struct {
	mu          sync.RWMutex
	attachments map[int64]domain.Attachment
}

func NewMemoryAttachmentStore(seed ...domain.Attachment) *MemoryAttachmentStore {
	s := &MemoryAttachmentStore{
		attachments: make(map[int64]domain.Attachment, len(seed)),
	}
	for _, att := range seed {
		s.attachments[att.ID] = att.Clone()
	}
	return s
}

func (s *MemoryAttachmentStore) Get(_ context.Context, id int64) (domain.Attachment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	att, ok := s.attachments[id]
	if !ok {
		return domain.Attachment{}, false, nil
	}
	return att.Clone(), true, nil
}

func (s *MemoryAttachmentStore) List(_ context.Context, ids []int64) ([]domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Attachment, 0, len(ids))
	for _, id := range ids {
		if att, ok := s.attachments[id]; ok {
			out = append(out, att.Clone())
		}
	}
	return out, nil
}

func (s *MemoryAttachmentStore) Upsert(_ context.Context, att domain.Attachment) error {
	if att.UpdatedAt.IsZero() {
		att.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[att.ID] = att.Clone()
	return nil
}

func (s *MemoryAttachmentStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attachments[id]; !ok {
		return ErrAttachmentNotFound
	}
	delete(s.attachments, id)
	return nil
}

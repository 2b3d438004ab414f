package store

import (
	"context"
	"testing"
	"time"

	"github.com/dunamismax/perflab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAttachment(id int64) domain.Attachment {
	return domain.Attachment{
		ID:           id,
		AttachedFile: "2024/05/photo.jpg",
		MimeType:     domain.MimeTypeJPEG,
		Metadata: &domain.ImageMetadata{
			Width:  1200,
			Height: 800,
			File:   "2024/05/photo.jpg",
			Sizes: map[string]domain.SizeEntry{
				"medium": {File: "photo-300x200.jpg", Width: 300, Height: 200, MimeType: domain.MimeTypeJPEG},
			},
		},
	}
}

func TestMemoryAttachmentStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAttachmentStore()

	require.NoError(t, s.Upsert(ctx, sampleAttachment(1)))

	got, ok, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024/05/photo.jpg", got.AttachedFile)
	assert.False(t, got.UpdatedAt.IsZero())

	_, ok, err = s.Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryAttachmentStoreKeepsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAttachmentStore()

	att := sampleAttachment(1)
	att.UpdatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(ctx, att))

	got, _, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, att.UpdatedAt, got.UpdatedAt)
}

func TestMemoryAttachmentStoreIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	seed := sampleAttachment(1)
	s := NewMemoryAttachmentStore(seed)

	seed.Metadata.Sizes["medium"] = domain.SizeEntry{File: "changed.jpg"}

	got, _, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "photo-300x200.jpg", got.Metadata.Sizes["medium"].File)

	got.Metadata.Width = 1
	again, _, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1200, again.Metadata.Width)
}

func TestMemoryAttachmentStoreListPreservesOrder(t *testing.T) {
	s := NewMemoryAttachmentStore(sampleAttachment(1), sampleAttachment(2), sampleAttachment(3))

	got, err := s.List(context.Background(), []int64{3, 9, 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(1), got[1].ID)
}

func TestMemoryAttachmentStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAttachmentStore(sampleAttachment(1))

	require.NoError(t, s.Delete(ctx, 1))
	require.ErrorIs(t, s.Delete(ctx, 1), ErrAttachmentNotFound)

	_, ok, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

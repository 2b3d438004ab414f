package srcset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunamismax/perflab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://cdn.example.com/uploads"

type staticReader map[int64]domain.Attachment

func (r staticReader) Get(_ context.Context, id int64) (domain.Attachment, bool, error) {
	att, ok := r[id]
	return att, ok, nil
}

type failingReader struct{}

func (failingReader) Get(context.Context, int64) (domain.Attachment, bool, error) {
	return domain.Attachment{}, false, errors.New("connection refused")
}

func photoAttachment() domain.Attachment {
	return domain.Attachment{
		ID:           42,
		AttachedFile: "2024/05/photo.jpg",
		MimeType:     domain.MimeTypeJPEG,
		Metadata: &domain.ImageMetadata{
			Width:  1200,
			Height: 800,
			File:   "2024/05/photo.jpg",
			Sizes: map[string]domain.SizeEntry{
				"thumbnail": {File: "photo-150x150.jpg", Width: 150, Height: 150, MimeType: domain.MimeTypeJPEG},
				"medium": {
					File: "photo-300x200.jpg", Width: 300, Height: 200, MimeType: domain.MimeTypeJPEG,
					Sources: map[string]domain.FormatSource{domain.MimeTypeWebP: {File: "photo-300x200-jpg.webp"}},
				},
				"medium_large": {
					File: "photo-768x512.jpg", Width: 768, Height: 512, MimeType: domain.MimeTypeJPEG,
					Sources: map[string]domain.FormatSource{domain.MimeTypeWebP: {File: "photo-768x512-jpg.webp"}},
				},
				"large": {File: "photo-1024x683.jpg", Width: 1024, Height: 683, MimeType: domain.MimeTypeJPEG},
			},
			Sources: map[string]domain.FormatSource{
				domain.MimeTypeWebP: {File: "photo-jpg.webp"},
			},
		},
	}
}

func newTestCalculator(atts ...domain.Attachment) *Calculator {
	reader := staticReader{}
	for _, att := range atts {
		reader[att.ID] = att
	}
	return NewCalculator(reader, DefaultRegistry(), testBaseURL)
}

func TestSrcSetOriginalMedium(t *testing.T) {
	calc := newTestCalculator(photoAttachment())

	got, err := calc.SrcSet(context.Background(), 42, "medium", nil)
	require.NoError(t, err)
	assert.Equal(t,
		testBaseURL+"/2024/05/photo-300x200.jpg 300w, "+
			testBaseURL+"/2024/05/photo-768x512.jpg 768w, "+
			testBaseURL+"/2024/05/photo-1024x683.jpg 1024w, "+
			testBaseURL+"/2024/05/photo.jpg 1200w",
		got)
}

func TestSrcSetWebPVariantOnlyListsWebP(t *testing.T) {
	calc := newTestCalculator(photoAttachment())

	got, err := calc.SrcSet(context.Background(), 42, "medium", domain.VariantWebP.Filter())
	require.NoError(t, err)
	assert.Equal(t,
		testBaseURL+"/2024/05/photo-300x200-jpg.webp 300w, "+
			testBaseURL+"/2024/05/photo-768x512-jpg.webp 768w, "+
			testBaseURL+"/2024/05/photo-jpg.webp 1200w",
		got)
}

func TestSrcSetFilterDoesNotLeakIntoLaterReads(t *testing.T) {
	att := photoAttachment()
	calc := newTestCalculator(att)

	_, err := calc.SrcSet(context.Background(), 42, "medium", domain.VariantWebP.Filter())
	require.NoError(t, err)

	got, err := calc.SrcSet(context.Background(), 42, "medium", nil)
	require.NoError(t, err)
	assert.Contains(t, got, "photo-1024x683.jpg 1024w")
	assert.NotContains(t, got, ".webp")
	assert.Equal(t, photoAttachment(), att)
}

func TestSrcSetFullSizePutsSourceFirst(t *testing.T) {
	calc := newTestCalculator(photoAttachment())

	got, err := calc.SrcSet(context.Background(), 42, SizeFull, nil)
	require.NoError(t, err)
	assert.Equal(t,
		testBaseURL+"/2024/05/photo.jpg 1200w, "+
			testBaseURL+"/2024/05/photo-300x200.jpg 300w, "+
			testBaseURL+"/2024/05/photo-768x512.jpg 768w, "+
			testBaseURL+"/2024/05/photo-1024x683.jpg 1024w",
		got)
}

func TestSrcSetFullSizeWebPHasNoMatchingSource(t *testing.T) {
	calc := newTestCalculator(photoAttachment())

	got, err := calc.SrcSet(context.Background(), 42, SizeFull, domain.VariantWebP.Filter())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSrcSetUnknownSizeFallsBackToFull(t *testing.T) {
	calc := newTestCalculator(photoAttachment())

	full, err := calc.SrcSet(context.Background(), 42, SizeFull, nil)
	require.NoError(t, err)
	got, err := calc.SrcSet(context.Background(), 42, "poster", nil)
	require.NoError(t, err)
	assert.Equal(t, full, got)
}

func TestSrcSetRespectsMaxWidth(t *testing.T) {
	calc := NewCalculator(staticReader{42: photoAttachment()}, nil, testBaseURL, WithMaxWidth(800))

	got, err := calc.SrcSet(context.Background(), 42, "medium", nil)
	require.NoError(t, err)
	assert.Equal(t,
		testBaseURL+"/2024/05/photo-300x200.jpg 300w, "+
			testBaseURL+"/2024/05/photo-768x512.jpg 768w",
		got)
}

func TestSrcSetWebPWithoutAlternatesIsEmpty(t *testing.T) {
	att := photoAttachment()
	att.Metadata.Sources = nil
	for name, entry := range att.Metadata.Sizes {
		entry.Sources = nil
		att.Metadata.Sizes[name] = entry
	}
	calc := newTestCalculator(att)

	got, err := calc.SrcSet(context.Background(), 42, "medium", domain.VariantWebP.Filter())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSrcSetSkipsFullSizeForGIFs(t *testing.T) {
	att := domain.Attachment{
		ID:           7,
		AttachedFile: "anim.gif",
		MimeType:     domain.MimeTypeGIF,
		Metadata: &domain.ImageMetadata{
			Width: 600, Height: 400, File: "anim.gif",
			Sizes: map[string]domain.SizeEntry{
				"thumbnail": {File: "anim-150x100.gif", Width: 150, Height: 100, MimeType: domain.MimeTypeGIF},
				"medium":    {File: "anim-300x200.gif", Width: 300, Height: 200, MimeType: domain.MimeTypeGIF},
			},
		},
	}
	calc := newTestCalculator(att)

	got, err := calc.SrcSet(context.Background(), 7, "medium", nil)
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/anim-300x200.gif 300w, "+testBaseURL+"/anim-150x100.gif 150w", got)
}

func TestSrcSetFiltersPreviousEdits(t *testing.T) {
	att := domain.Attachment{
		ID:           9,
		AttachedFile: "2023/01/pic-e1700000000000.jpg",
		MimeType:     domain.MimeTypeJPEG,
		Metadata: &domain.ImageMetadata{
			Width: 1000, Height: 500, File: "2023/01/pic-e1700000000000.jpg",
			Sizes: map[string]domain.SizeEntry{
				"medium":       {File: "pic-e1700000000000-300x150.jpg", Width: 300, Height: 150},
				"medium_large": {File: "pic-768x384.jpg", Width: 768, Height: 384},
			},
		},
	}
	calc := newTestCalculator(att)

	got, err := calc.SrcSet(context.Background(), 9, "medium", nil)
	require.NoError(t, err)
	assert.Equal(t,
		testBaseURL+"/2023/01/pic-e1700000000000-300x150.jpg 300w, "+
			testBaseURL+"/2023/01/pic-e1700000000000.jpg 1000w",
		got)
}

func TestSrcSetEscapesSpaces(t *testing.T) {
	att := domain.Attachment{
		ID:           3,
		AttachedFile: "my photo.jpg",
		MimeType:     domain.MimeTypeJPEG,
		Metadata: &domain.ImageMetadata{
			Width: 600, Height: 400, File: "my photo.jpg",
			Sizes: map[string]domain.SizeEntry{
				"medium": {File: "my photo-300x200.jpg", Width: 300, Height: 200},
			},
		},
	}
	calc := newTestCalculator(att)

	got, err := calc.SrcSet(context.Background(), 3, "medium", nil)
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/my%20photo-300x200.jpg 300w, "+testBaseURL+"/my%20photo.jpg 600w", got)
}

func TestSrcSetMissingData(t *testing.T) {
	calc := newTestCalculator(domain.Attachment{ID: 5, AttachedFile: "doc.pdf", MimeType: "application/pdf"})

	got, err := calc.SrcSet(context.Background(), 5, "medium", nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = calc.SrcSet(context.Background(), 404, "medium", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSrcSetMalformedMetadataWithVariant(t *testing.T) {
	att := photoAttachment()
	att.Metadata.Sizes = nil
	calc := newTestCalculator(att)

	got, err := calc.SrcSet(context.Background(), 42, "medium", nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = calc.SrcSet(context.Background(), 42, "medium", domain.VariantWebP.Filter())
	require.ErrorIs(t, err, domain.ErrMalformedMetadata)
}

func TestSrcSetReaderError(t *testing.T) {
	calc := NewCalculator(failingReader{}, nil, testBaseURL)

	_, err := calc.SrcSet(context.Background(), 1, "medium", nil)
	require.Error(t, err)
}

func TestConstrainDimensions(t *testing.T) {
	w, h := constrainDimensions(1200, 800, 300, 300)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)

	w, h = constrainDimensions(200, 100, 300, 300)
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)

	w, h = constrainDimensions(1000, 500, 0, 0)
	assert.Equal(t, 1000, w)
	assert.Equal(t, 500, h)
}

func TestMatchesRatio(t *testing.T) {
	assert.True(t, matchesRatio(300, 200, 1024, 683))
	assert.False(t, matchesRatio(300, 200, 150, 150))
	assert.False(t, matchesRatio(300, 200, 0, 0))
}

func TestLoadRegistry(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sizes.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`sizes:
  - name: thumbnail
    width: 100
    height: 100
    crop: true
  - name: hero
    width: 1600
    height: 0
`), 0o644))

	reg, err := LoadRegistry(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"thumbnail", "hero"}, reg.Names())

	hero, ok := reg.Lookup("hero")
	require.True(t, ok)
	assert.Equal(t, 1600, hero.Width)

	w, h := reg.Constrain(3200, 1800, "hero")
	assert.Equal(t, 1600, w)
	assert.Equal(t, 900, h)
}

func TestNewRegistryRejectsInvalidSizes(t *testing.T) {
	_, err := NewRegistry([]Size{{Name: "a"}, {Name: "a"}})
	assert.Error(t, err)

	_, err = NewRegistry([]Size{{Name: SizeFull}})
	assert.Error(t, err)

	_, err = NewRegistry(nil)
	assert.Error(t, err)
}

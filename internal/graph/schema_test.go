package graph

import (
	"context"
	"testing"

	"github.com/dunamismax/perflab/internal/domain"
	"github.com/dunamismax/perflab/internal/srcset"
	"github.com/dunamismax/perflab/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://cdn.example.com/uploads"

func photoAttachment() domain.Attachment {
	return domain.Attachment{
		ID:           42,
		AttachedFile: "2024/05/photo.jpg",
		MimeType:     domain.MimeTypeJPEG,
		Title:        "Photo",
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
			DominantColor:   "a1b2c3",
			HasTransparency: true,
		},
	}
}

type testEnv struct {
	exec *Executor
	calc *srcset.Calculator
}

func newTestEnv(t *testing.T, atts ...domain.Attachment) testEnv {
	t.Helper()

	attachments := store.NewMemoryAttachmentStore(atts...)
	calc := srcset.NewCalculator(attachments, srcset.DefaultRegistry(), testBaseURL)
	schema, err := NewSchema(Dependencies{
		Store:     attachments,
		SrcSets:   calc,
		URLs:      calc.AttachmentURL,
		SizeNames: calc.Sizes().Names(),
	})
	require.NoError(t, err)
	return testEnv{exec: NewExecutor(schema), calc: calc}
}

func execute(t *testing.T, env testEnv, query string, variables map[string]any) map[string]any {
	t.Helper()
	result := env.exec.Execute(context.Background(), Request{Query: query, Variables: variables})
	require.Empty(t, result.Errors)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	return data
}

func mediaItemData(t *testing.T, data map[string]any) map[string]any {
	t.Helper()
	item, ok := data["mediaItem"].(map[string]any)
	require.True(t, ok, "mediaItem missing from %v", data)
	return item
}

func TestMediaItemCoreFields(t *testing.T) {
	env := newTestEnv(t, photoAttachment())

	item := mediaItemData(t, execute(t, env, `{
		mediaItem(databaseId: 42) {
			id
			databaseId
			title
			mimeType
			sourceUrl
			mediaDetails { width height file }
		}
	}`, nil))

	assert.Equal(t, GlobalID(42), item["id"])
	assert.Equal(t, 42, item["databaseId"])
	assert.Equal(t, "Photo", item["title"])
	assert.Equal(t, domain.MimeTypeJPEG, item["mimeType"])
	assert.Equal(t, testBaseURL+"/2024/05/photo.jpg", item["sourceUrl"])
	assert.Equal(t, map[string]any{"width": 1200, "height": 800, "file": "2024/05/photo.jpg"}, item["mediaDetails"])
}

func TestMediaItemUnknownIDIsNull(t *testing.T) {
	env := newTestEnv(t)

	data := execute(t, env, `{ mediaItem(databaseId: 7) { id } }`, nil)
	assert.Nil(t, data["mediaItem"])
}

func TestDominantColorAndTransparency(t *testing.T) {
	env := newTestEnv(t, photoAttachment())

	item := mediaItemData(t, execute(t, env, `{
		mediaItem(databaseId: 42) {
			dominantColor(format: HEX)
			plain: dominantColor
			hasTransparency
		}
	}`, nil))

	assert.Equal(t, "#a1b2c3", item["dominantColor"])
	assert.Equal(t, "#a1b2c3", item["plain"])
	assert.Equal(t, true, item["hasTransparency"])
}

func TestMissingAnalysisResolvesToDefaults(t *testing.T) {
	att := photoAttachment()
	att.Metadata.DominantColor = ""
	att.Metadata.HasTransparency = false
	bare := domain.Attachment{ID: 7, AttachedFile: "doc.pdf", MimeType: "application/pdf"}
	env := newTestEnv(t, att, bare)

	data := execute(t, env, `{
		mediaItems(databaseIds: [42, 7]) { databaseId dominantColor hasTransparency srcSet }
	}`, nil)

	items, ok := data["mediaItems"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	assert.Nil(t, first["dominantColor"])
	assert.Equal(t, false, first["hasTransparency"])

	second := items[1].(map[string]any)
	assert.Equal(t, 7, second["databaseId"])
	assert.Nil(t, second["dominantColor"])
	assert.Equal(t, false, second["hasTransparency"])
	assert.Nil(t, second["srcSet"])
}

func TestSrcSetDefaultsMatchCalculator(t *testing.T) {
	env := newTestEnv(t, photoAttachment())

	want, err := env.calc.SrcSet(context.Background(), 42, DefaultSrcSetSize, nil)
	require.NoError(t, err)
	require.NotEmpty(t, want)

	item := mediaItemData(t, execute(t, env, `{
		mediaItem(databaseId: 42) {
			srcSet
			explicit: srcSet(size: MEDIUM, variant: ORIGINAL)
		}
	}`, nil))

	assert.Equal(t, want, item["srcSet"])
	assert.Equal(t, want, item["explicit"])
}

func TestSrcSetWebPVariant(t *testing.T) {
	env := newTestEnv(t, photoAttachment())

	item := mediaItemData(t, execute(t, env, `query ($id: Int!) {
		mediaItem(databaseId: $id) {
			webp: srcSet(size: MEDIUM, variant: WEBP)
			original: srcSet(size: MEDIUM)
		}
	}`, map[string]any{"id": 42}))

	assert.Equal(t,
		testBaseURL+"/2024/05/photo-300x200-jpg.webp 300w, "+
			testBaseURL+"/2024/05/photo-768x512-jpg.webp 768w, "+
			testBaseURL+"/2024/05/photo-jpg.webp 1200w",
		item["webp"])

	// The variant only applies to its own field.
	original, ok := item["original"].(string)
	require.True(t, ok)
	assert.Contains(t, original, "photo-300x200.jpg 300w")
	assert.NotContains(t, original, ".webp")
}

func TestSrcSetEmptyResolvesToNull(t *testing.T) {
	att := photoAttachment()
	att.Metadata.Sizes = map[string]domain.SizeEntry{}
	env := newTestEnv(t, att)

	item := mediaItemData(t, execute(t, env, `{ mediaItem(databaseId: 42) { srcSet } }`, nil))
	assert.Nil(t, item["srcSet"])
}

func TestSrcSetMalformedMetadataReportsError(t *testing.T) {
	att := photoAttachment()
	att.Metadata.Sizes = nil
	env := newTestEnv(t, att)

	result := env.exec.Execute(context.Background(), Request{
		Query: `{ mediaItem(databaseId: 42) { srcSet(variant: WEBP) } }`,
	})
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "malformed")
}

func TestMediaItemImplementsPerformanceLabInterface(t *testing.T) {
	env := newTestEnv(t, photoAttachment())

	data := execute(t, env, `{
		__type(name: "MediaItem") { interfaces { name } }
	}`, nil)

	typ := data["__type"].(map[string]any)
	assert.Equal(t, []any{map[string]any{"name": TypePerformanceLab}}, typ["interfaces"])
}

func TestMediaItemsRejectsOversizedBatch(t *testing.T) {
	env := newTestEnv(t)

	ids := make([]any, maxBatchSize+1)
	for i := range ids {
		ids[i] = i + 1
	}
	result := env.exec.Execute(context.Background(), Request{
		Query:     `query ($ids: [Int!]!) { mediaItems(databaseIds: $ids) { id } }`,
		Variables: map[string]any{"ids": ids},
	})
	require.NotEmpty(t, result.Errors)
}

func TestRequestValidate(t *testing.T) {
	assert.Error(t, Request{Query: "  "}.Validate())
	assert.NoError(t, Request{Query: "{ __typename }"}.Validate())
}

func TestSizeEnumName(t *testing.T) {
	cases := map[string]string{
		"thumbnail":    "THUMBNAIL",
		"medium_large": "MEDIUM_LARGE",
		"1536x1536":    "_1536X1536",
		"post-thumb":   "POST_THUMB",
	}
	for in, want := range cases {
		assert.Equal(t, want, SizeEnumName(in), in)
	}
}

func TestNewSchemaRequiresDependencies(t *testing.T) {
	_, err := NewSchema(Dependencies{SizeNames: []string{"medium"}})
	require.Error(t, err)

	_, err = NewSchema(Dependencies{Store: store.NewMemoryAttachmentStore(), SizeNames: []string{"medium"}})
	require.Error(t, err)
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioMetadata() ImageMetadata {
	return ImageMetadata{
		File: "a.jpg",
		Sizes: map[string]SizeEntry{
			"medium": {
				File:     "a-m.jpg",
				MimeType: MimeTypeJPEG,
				Sources: map[string]FormatSource{
					MimeTypeWebP: {File: "a-m.webp"},
				},
			},
			"thumb": {
				File:     "a-t.jpg",
				MimeType: MimeTypeJPEG,
				Sources:  map[string]FormatSource{},
			},
		},
	}
}

func TestSelectVariantDropsSizesWithoutFormat(t *testing.T) {
	out, err := SelectVariant(scenarioMetadata(), MimeTypeWebP, MimeTypeJPEG)
	require.NoError(t, err)

	require.Len(t, out.Sizes, 1)
	medium, ok := out.Sizes["medium"]
	require.True(t, ok, "medium should survive")
	assert.Equal(t, "a-m.webp", medium.File)
	assert.Equal(t, MimeTypeWebP, medium.MimeType)
	assert.NotContains(t, out.Sizes, "thumb")
}

func TestSelectVariantIdentityWhenAlreadyInFormat(t *testing.T) {
	in := scenarioMetadata()

	out, err := SelectVariant(in, MimeTypeWebP, MimeTypeWebP)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSelectVariantDoesNotMutateInput(t *testing.T) {
	in := scenarioMetadata()

	_, err := SelectVariant(in, MimeTypeWebP, MimeTypeJPEG)
	require.NoError(t, err)

	assert.Equal(t, scenarioMetadata(), in)
}

func TestSelectVariantRewritesPrimaryFile(t *testing.T) {
	in := ImageMetadata{
		File: "2024/05/photo.jpg",
		Sizes: map[string]SizeEntry{
			"medium": {File: "photo-300x200.jpg", MimeType: MimeTypeJPEG},
		},
		Sources: map[string]FormatSource{
			MimeTypeJPEG: {File: "photo.jpg"},
			MimeTypeWebP: {File: "photo-jpg.webp"},
		},
	}

	out, err := SelectVariant(in, MimeTypeWebP, MimeTypeJPEG)
	require.NoError(t, err)
	assert.Equal(t, "2024/05/photo-jpg.webp", out.File)
	assert.Empty(t, out.Sizes)
}

func TestSelectVariantKeepsPrimaryFileWithoutAlternate(t *testing.T) {
	in := scenarioMetadata()
	in.File = "2024/05/a.jpg"

	out, err := SelectVariant(in, MimeTypeWebP, MimeTypeJPEG)
	require.NoError(t, err)
	assert.Equal(t, "2024/05/a.jpg", out.File)
}

func TestSelectVariantPrimaryFileWithoutDirectory(t *testing.T) {
	in := scenarioMetadata()
	in.Sources = map[string]FormatSource{MimeTypeWebP: {File: "a.webp"}}

	out, err := SelectVariant(in, MimeTypeWebP, MimeTypeJPEG)
	require.NoError(t, err)
	assert.Equal(t, "a.webp", out.File)
}

func TestSelectVariantIsIdempotent(t *testing.T) {
	once, err := SelectVariant(scenarioMetadata(), MimeTypeWebP, MimeTypeJPEG)
	require.NoError(t, err)

	twice, err := SelectVariant(once, MimeTypeWebP, once.Sizes["medium"].MimeType)
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	again, err := SelectVariant(once, MimeTypeWebP, MimeTypeJPEG)
	require.NoError(t, err)
	assert.Equal(t, once, again)
}

func TestSelectVariantMissingSizesIsMalformed(t *testing.T) {
	_, err := SelectVariant(ImageMetadata{File: "a.jpg"}, MimeTypeWebP, MimeTypeJPEG)
	require.ErrorIs(t, err, ErrMalformedMetadata)
}

func TestSelectVariantComparesMimeTypesVerbatim(t *testing.T) {
	out, err := SelectVariant(scenarioMetadata(), MimeTypeWebP, "IMAGE/WEBP")
	require.NoError(t, err)
	assert.NotContains(t, out.Sizes, "thumb")
}

func TestVariantFilterUsesAttachmentMimeType(t *testing.T) {
	filter := VariantWebP.Filter()
	require.NotNil(t, filter)

	out, err := filter(scenarioMetadata(), Attachment{ID: 7, MimeType: MimeTypeWebP})
	require.NoError(t, err)
	assert.Len(t, out.Sizes, 2)

	assert.Nil(t, VariantOriginal.Filter())
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, VariantOriginal, v)

	v, err = ParseVariant(" WebP ")
	require.NoError(t, err)
	assert.Equal(t, VariantWebP, v)

	_, err = ParseVariant("avif")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestFormatDominantColor(t *testing.T) {
	got, ok := FormatDominantColor("a1b2c3", DominantColorHex)
	require.True(t, ok)
	assert.Equal(t, "#a1b2c3", got)

	got, ok = FormatDominantColor("a1b2c3", "")
	require.True(t, ok)
	assert.Equal(t, "#a1b2c3", got)

	_, ok = FormatDominantColor("", DominantColorHex)
	assert.False(t, ok)
}

func TestAttachmentValidate(t *testing.T) {
	valid := Attachment{ID: 1, AttachedFile: "2024/05/a.jpg", MimeType: MimeTypeJPEG}
	require.NoError(t, valid.Validate())

	assert.ErrorIs(t, Attachment{}.Validate(), ErrInvalidAttachment)

	malformed := valid
	malformed.Metadata = &ImageMetadata{File: "2024/05/a.jpg"}
	assert.ErrorIs(t, malformed.Validate(), ErrMalformedMetadata)
}

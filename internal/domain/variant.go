package domain

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

type Variant string

const (
	VariantOriginal Variant = "original"
	VariantWebP     Variant = "webp"
)

var ErrUnknownVariant = errors.New("unknown variant")

// MetadataFilter rewrites attachment metadata for the duration of one read.
type MetadataFilter func(meta ImageMetadata, attachment Attachment) (ImageMetadata, error)

func ParseVariant(raw string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(raw))); v {
	case "":
		return VariantOriginal, nil
	case VariantOriginal, VariantWebP:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, raw)
	}
}

// Format is the MIME type the variant selects, or "" for the original files.
func (v Variant) Format() string {
	switch v {
	case VariantWebP:
		return MimeTypeWebP
	default:
		return ""
	}
}

// Filter returns the metadata filter for the variant, nil for the original.
func (v Variant) Filter() MetadataFilter {
	format := v.Format()
	if format == "" {
		return nil
	}
	return VariantFilter(format)
}

// VariantFilter binds SelectVariant to the MIME type of the attachment
// being read.
func VariantFilter(format string) MetadataFilter {
	return func(meta ImageMetadata, attachment Attachment) (ImageMetadata, error) {
		return SelectVariant(meta, format, attachment.MimeType)
	}
}

// SelectVariant rewrites meta so that the full-size file and every size
// point at their format rendition. Sizes without that rendition are
// dropped; the full-size file is kept as is when it has none. The input is
// not modified. MIME types are compared verbatim.
func SelectVariant(meta ImageMetadata, format, originalMimeType string) (ImageMetadata, error) {
	if originalMimeType == format {
		return meta, nil
	}
	if meta.Sizes == nil {
		return ImageMetadata{}, fmt.Errorf("select %s variant: %w: sizes mapping is missing", format, ErrMalformedMetadata)
	}

	out := meta.Clone()
	if src, ok := meta.Source(format); ok {
		out.File = path.Join(path.Dir(meta.File), src.File)
	}

	for name, entry := range out.Sizes {
		src, ok := entry.Source(format)
		if !ok {
			delete(out.Sizes, name)
			continue
		}
		entry.File = src.File
		entry.MimeType = format
		if src.Filesize > 0 {
			entry.Filesize = src.Filesize
		}
		out.Sizes[name] = entry
	}

	return out, nil
}

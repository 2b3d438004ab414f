package domain

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
)

var (
	ErrMalformedMetadata = errors.New("malformed image metadata")
	ErrInvalidAttachment = errors.New("invalid attachment")
)

// FormatSource is one alternate-format rendition of a file.
type FormatSource struct {
	File     string `json:"file"`
	Filesize int64  `json:"filesize,omitempty"`
}

// SizeEntry is one generated size of an image.
type SizeEntry struct {
	File     string                  `json:"file"`
	Width    int                     `json:"width"`
	Height   int                     `json:"height"`
	MimeType string                  `json:"mime-type"`
	Filesize int64                   `json:"filesize,omitempty"`
	Sources  map[string]FormatSource `json:"sources,omitempty"`
}

// ImageMetadata mirrors the attachment metadata record kept by the media
// library. File is relative to the uploads directory; size files are
// relative to the directory of File.
type ImageMetadata struct {
	Width           int                     `json:"width"`
	Height          int                     `json:"height"`
	File            string                  `json:"file"`
	Filesize        int64                   `json:"filesize,omitempty"`
	Sizes           map[string]SizeEntry    `json:"sizes"`
	Sources         map[string]FormatSource `json:"sources,omitempty"`
	DominantColor   string                  `json:"dominant_color,omitempty"`
	HasTransparency bool                    `json:"has_transparency,omitempty"`
}

// Attachment is a media library item with its metadata.
type Attachment struct {
	ID           int64          `json:"id"`
	AttachedFile string         `json:"attached_file"`
	MimeType     string         `json:"mime_type"`
	Title        string         `json:"title,omitempty"`
	Metadata     *ImageMetadata `json:"metadata,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the metadata.
func (m ImageMetadata) Clone() ImageMetadata {
	out := m
	out.Sources = maps.Clone(m.Sources)
	if m.Sizes != nil {
		out.Sizes = make(map[string]SizeEntry, len(m.Sizes))
		for name, entry := range m.Sizes {
			entry.Sources = maps.Clone(entry.Sources)
			out.Sizes[name] = entry
		}
	}
	return out
}

func (m ImageMetadata) Validate() error {
	if m.Sizes == nil {
		return fmt.Errorf("%w: sizes mapping is missing", ErrMalformedMetadata)
	}
	for name, entry := range m.Sizes {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: size with empty label", ErrMalformedMetadata)
		}
		if strings.TrimSpace(entry.File) == "" {
			return fmt.Errorf("%w: sizes[%s].file is required", ErrMalformedMetadata, name)
		}
	}
	return nil
}

// Source returns the alternate rendition of the full-size file in format.
func (m ImageMetadata) Source(format string) (FormatSource, bool) {
	src, ok := m.Sources[format]
	if !ok || strings.TrimSpace(src.File) == "" {
		return FormatSource{}, false
	}
	return src, true
}

func (e SizeEntry) Source(format string) (FormatSource, bool) {
	src, ok := e.Sources[format]
	if !ok || strings.TrimSpace(src.File) == "" {
		return FormatSource{}, false
	}
	return src, true
}

func (a Attachment) Clone() Attachment {
	if a.Metadata != nil {
		meta := a.Metadata.Clone()
		a.Metadata = &meta
	}
	return a
}

func (a Attachment) Validate() error {
	if a.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidAttachment)
	}
	if strings.TrimSpace(a.AttachedFile) == "" {
		return fmt.Errorf("%w: attached_file is required", ErrInvalidAttachment)
	}
	if strings.TrimSpace(a.MimeType) == "" {
		return fmt.Errorf("%w: mime_type is required", ErrInvalidAttachment)
	}
	if a.Metadata != nil {
		if err := a.Metadata.Validate(); err != nil {
			return err
		}
	}
	return nil
}

package srcset

import (
	"cmp"
	"context"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/dunamismax/perflab/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxWidth = 2048

var editHashPattern = regexp.MustCompile(`-e[0-9]{13}`)

type AttachmentReader interface {
	Get(ctx context.Context, id int64) (domain.Attachment, bool, error)
}

type Calculator struct {
	reader   AttachmentReader
	sizes    *Registry
	baseURL  string
	maxWidth int
	tracer   trace.Tracer
}

type Option func(*Calculator)

// WithMaxWidth caps candidate widths; the src image is always kept.
// Zero disables the cap.
func WithMaxWidth(width int) Option {
	return func(c *Calculator) {
		c.maxWidth = width
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Calculator) {
		c.tracer = tracer
	}
}

func NewCalculator(reader AttachmentReader, sizes *Registry, baseURL string, opts ...Option) *Calculator {
	if sizes == nil {
		sizes = DefaultRegistry()
	}
	c := &Calculator{
		reader:   reader,
		sizes:    sizes,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		maxWidth: DefaultMaxWidth,
		tracer:   otel.Tracer("perflab/srcset"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calculator) Sizes() *Registry {
	return c.sizes
}

// AttachmentURL is the public URL of the attachment's original upload.
func (c *Calculator) AttachmentURL(att domain.Attachment) string {
	return AttachmentURL(c.baseURL, att)
}

func AttachmentURL(baseURL string, att domain.Attachment) string {
	file := strings.TrimSpace(att.AttachedFile)
	if file == "" {
		return ""
	}
	if strings.HasPrefix(file, "http://") || strings.HasPrefix(file, "https://") {
		return file
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(file, "/")
}

// SrcSet builds the srcset attribute for one size of an attachment. filter,
// when non-nil, rewrites the metadata for this call only. An empty result
// means no srcset applies.
func (c *Calculator) SrcSet(ctx context.Context, attachmentID int64, size string, filter domain.MetadataFilter) (string, error) {
	ctx, span := c.tracer.Start(ctx, "srcset.calculate")
	span.SetAttributes(
		attribute.Int64("attachment.id", attachmentID),
		attribute.String("srcset.size", size),
		attribute.Bool("srcset.filtered", filter != nil),
	)
	defer span.End()

	att, ok, err := c.reader.Get(ctx, attachmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attachment lookup failed")
		return "", fmt.Errorf("load attachment %d: %w", attachmentID, err)
	}
	if !ok || att.Metadata == nil {
		return "", nil
	}

	meta := att.Metadata.Clone()
	if filter != nil {
		meta, err = filter(meta, att)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "metadata filter failed")
			return "", fmt.Errorf("filter metadata for attachment %d: %w", attachmentID, err)
		}
	}

	srcURL, width, height := c.imageSource(att, meta, size)
	if srcURL == "" {
		return "", nil
	}

	out := c.calculate(meta, srcURL, width, height)
	span.SetAttributes(attribute.Bool("srcset.empty", out == ""))
	return out, nil
}

// imageSource resolves the URL and display dimensions of the requested
// size, falling back to the full-size image.
func (c *Calculator) imageSource(att domain.Attachment, meta domain.ImageMetadata, size string) (string, int, int) {
	imgURL := c.AttachmentURL(att)
	if imgURL == "" {
		return "", 0, 0
	}

	width, height := 0, 0
	if entry, ok := meta.Sizes[size]; ok && size != SizeFull && strings.TrimSpace(entry.File) != "" {
		imgURL = imgURL[:strings.LastIndex(imgURL, "/")+1] + entry.File
		width, height = entry.Width, entry.Height
	}
	if width == 0 && height == 0 {
		width, height = meta.Width, meta.Height
	}

	width, height = c.sizes.Constrain(width, height, size)
	return imgURL, width, height
}

type candidate struct {
	file   string
	width  int
	height int
}

type source struct {
	url   string
	width int
}

func (c *Calculator) calculate(meta domain.ImageMetadata, srcURL string, width, height int) string {
	if len(meta.Sizes) == 0 || len(meta.File) < 4 || width < 1 {
		return ""
	}

	candidates := sortedCandidates(meta.Sizes)

	// Intermediate GIF sizes are flattened, so the animated original is
	// never offered next to them.
	if meta.Sizes["thumbnail"].MimeType != domain.MimeTypeGIF {
		candidates = append(candidates, candidate{
			file:   path.Base(meta.File),
			width:  meta.Width,
			height: meta.Height,
		})
	} else if strings.Index(srcURL, meta.File) > 0 {
		return ""
	}

	dirname := relativeDir(meta.File)
	baseURL := c.baseURL + "/" + dirname

	editHash := editHashPattern.FindString(path.Base(srcURL))

	var (
		sources    []source
		srcMatched bool
	)
	for _, img := range candidates {
		isSrc := false
		if !srcMatched && strings.Contains(srcURL, dirname+img.file) {
			srcMatched = true
			isSrc = true
		}

		if editHash != "" && strings.Index(img.file, editHash) <= 0 {
			continue
		}
		if c.maxWidth > 0 && img.width > c.maxWidth && !isSrc {
			continue
		}
		if !matchesRatio(width, height, img.width, img.height) {
			continue
		}

		s := source{url: baseURL + img.file, width: img.width}
		if isSrc {
			sources = prependSource(sources, s)
		} else {
			sources = setSource(sources, s)
		}
	}

	if !srcMatched || len(sources) < 2 {
		return ""
	}

	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, strings.ReplaceAll(s.url, " ", "%20")+" "+strconv.Itoa(s.width)+"w")
	}
	return strings.Join(parts, ", ")
}

func sortedCandidates(sizes map[string]domain.SizeEntry) []candidate {
	names := make([]string, 0, len(sizes))
	for name := range sizes {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if n := cmp.Compare(sizes[a].Width, sizes[b].Width); n != 0 {
			return n
		}
		return cmp.Compare(a, b)
	})

	out := make([]candidate, 0, len(names)+1)
	for _, name := range names {
		entry := sizes[name]
		out = append(out, candidate{file: entry.File, width: entry.Width, height: entry.Height})
	}
	return out
}

// setSource keeps one source per width; a later file with the same width
// replaces the earlier one in place.
func setSource(sources []source, s source) []source {
	for i := range sources {
		if sources[i].width == s.width {
			sources[i] = s
			return sources
		}
	}
	return append(sources, s)
}

// prependSource puts the src image first, dropping any other source of the
// same width.
func prependSource(sources []source, s source) []source {
	out := make([]source, 0, len(sources)+1)
	out = append(out, s)
	for _, existing := range sources {
		if existing.width != s.width {
			out = append(out, existing)
		}
	}
	return out
}

// relativeDir returns the uploads sub-directory of file with a trailing
// slash, or "" for files at the uploads root.
func relativeDir(file string) string {
	dir := path.Dir(file)
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.TrimLeft(dir, "/") + "/"
}

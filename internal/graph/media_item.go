package graph

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/dunamismax/perflab/internal/domain"
	"github.com/graphql-go/graphql"
)

const (
	TypeMediaItem         = "MediaItem"
	TypeMediaDetails      = "MediaDetails"
	TypeMediaItemSizeEnum = "MediaItemSizeEnum"

	maxBatchSize = 100
)

// Item is what the media item field resolvers need from their source.
type Item interface {
	DatabaseID() int64
	Metadata(ctx context.Context) (*domain.ImageMetadata, bool, error)
}

type AttachmentStore interface {
	Get(ctx context.Context, id int64) (domain.Attachment, bool, error)
	List(ctx context.Context, ids []int64) ([]domain.Attachment, error)
}

// URLFunc returns the public URL of an attachment's original upload.
type URLFunc func(att domain.Attachment) string

type mediaItem struct {
	att domain.Attachment
	url string
}

func newMediaItem(att domain.Attachment, urls URLFunc) *mediaItem {
	item := &mediaItem{att: att}
	if urls != nil {
		item.url = urls(att)
	}
	return item
}

func (m *mediaItem) DatabaseID() int64 {
	return m.att.ID
}

func (m *mediaItem) Metadata(context.Context) (*domain.ImageMetadata, bool, error) {
	if m.att.Metadata == nil {
		return nil, false, nil
	}
	return m.att.Metadata, true, nil
}

// GlobalID encodes an attachment id the way the media API exposes node ids.
func GlobalID(id int64) string {
	return base64.StdEncoding.EncodeToString([]byte("post:" + strconv.FormatInt(id, 10)))
}

// SizeEnumName converts a registered size name into an enum value name,
// e.g. "medium_large" -> MEDIUM_LARGE and "1536x1536" -> _1536X1536.
func SizeEnumName(size string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(size) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "_" + name
	}
	return name
}

// RegisterMediaItems registers the media item types and root query fields.
func RegisterMediaItems(r *Registry, store AttachmentStore, urls URLFunc, sizeNames []string) error {
	if store == nil {
		return errors.New("attachment store is required")
	}
	if len(sizeNames) == 0 {
		return errors.New("at least one image size is required")
	}

	sizeValues := make(map[string]EnumValue, len(sizeNames))
	for _, size := range sizeNames {
		sizeValues[SizeEnumName(size)] = EnumValue{
			Value:       size,
			Description: fmt.Sprintf("MediaItem with the %s size", size),
		}
	}
	if err := r.RegisterEnum(TypeMediaItemSizeEnum, "The size of the media item object.", sizeValues); err != nil {
		return err
	}

	if err := r.RegisterObject(TypeMediaDetails, ObjectConfig{
		Description: "File details for a media item.",
		Fields: map[string]FieldConfig{
			"width": {
				Type: "Int",
				Resolve: metadataField(func(meta *domain.ImageMetadata) any {
					return meta.Width
				}),
			},
			"height": {
				Type: "Int",
				Resolve: metadataField(func(meta *domain.ImageMetadata) any {
					return meta.Height
				}),
			},
			"file": {
				Type: "String",
				Resolve: metadataField(func(meta *domain.ImageMetadata) any {
					return meta.File
				}),
			},
		},
	}); err != nil {
		return err
	}

	if err := r.RegisterObject(TypeMediaItem, ObjectConfig{
		Description: "An uploaded media library item.",
		IsTypeOf: func(value any) bool {
			_, ok := value.(*mediaItem)
			return ok
		},
		Fields: map[string]FieldConfig{
			"id": {
				Type: "ID!",
				Resolve: itemField(func(m *mediaItem) any {
					return GlobalID(m.att.ID)
				}),
			},
			"databaseId": {
				Type: "Int!",
				Resolve: itemField(func(m *mediaItem) any {
					return int(m.att.ID)
				}),
			},
			"title": {
				Type: "String",
				Resolve: itemField(func(m *mediaItem) any {
					return nullableString(m.att.Title)
				}),
			},
			"mimeType": {
				Type: "String",
				Resolve: itemField(func(m *mediaItem) any {
					return nullableString(m.att.MimeType)
				}),
			},
			"sourceUrl": {
				Type: "String",
				Resolve: itemField(func(m *mediaItem) any {
					return nullableString(m.url)
				}),
			},
			"mediaDetails": {
				Type: TypeMediaDetails,
				Resolve: itemField(func(m *mediaItem) any {
					if m.att.Metadata == nil {
						return nil
					}
					return m.att.Metadata
				}),
			},
		},
	}); err != nil {
		return err
	}

	if err := r.RegisterRootField("mediaItem", FieldConfig{
		Type:        TypeMediaItem,
		Description: "A media item by database id.",
		Args: map[string]ArgConfig{
			"databaseId": {Type: "Int!", Description: "Database id of the media item."},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			id, _ := p.Args["databaseId"].(int)
			att, ok, err := store.Get(resolveContext(p), int64(id))
			if err != nil {
				return nil, fmt.Errorf("load media item %d: %w", id, err)
			}
			if !ok {
				return nil, nil
			}
			return newMediaItem(att, urls), nil
		},
	}); err != nil {
		return err
	}

	return r.RegisterRootField("mediaItems", FieldConfig{
		Type:        "[" + TypeMediaItem + "]",
		Description: "Media items by database id, in request order. Unknown ids are skipped.",
		Args: map[string]ArgConfig{
			"databaseIds": {Type: "[Int!]!", Description: "Database ids of the media items."},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			raw, _ := p.Args["databaseIds"].([]any)
			if len(raw) > maxBatchSize {
				return nil, fmt.Errorf("at most %d media items can be requested at once", maxBatchSize)
			}
			ids := make([]int64, 0, len(raw))
			for _, v := range raw {
				if id, ok := v.(int); ok {
					ids = append(ids, int64(id))
				}
			}
			atts, err := store.List(resolveContext(p), ids)
			if err != nil {
				return nil, fmt.Errorf("load media items: %w", err)
			}
			items := make([]any, 0, len(atts))
			for _, att := range atts {
				items = append(items, newMediaItem(att, urls))
			}
			return items, nil
		},
	})
}

func itemField(fn func(m *mediaItem) any) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		m, ok := p.Source.(*mediaItem)
		if !ok {
			return nil, fmt.Errorf("unexpected media item source %T", p.Source)
		}
		return fn(m), nil
	}
}

func metadataField(fn func(meta *domain.ImageMetadata) any) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		meta, ok := p.Source.(*domain.ImageMetadata)
		if !ok || meta == nil {
			return nil, fmt.Errorf("unexpected media details source %T", p.Source)
		}
		return fn(meta), nil
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func resolveContext(p graphql.ResolveParams) context.Context {
	if p.Context != nil {
		return p.Context
	}
	return context.Background()
}

package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/dunamismax/perflab/internal/domain"
	"github.com/graphql-go/graphql"
)

const (
	TypePerformanceLab        = "MediaItemPerformanceLab"
	TypePerformanceLabVariant = "MediaItemPerformanceLabVariant"
	TypeDominantColorFormat   = "MediaItemPerformanceLabDominantColorFormat"
	DefaultSrcSetSize         = "medium"
)

// SrcSetter computes srcset attributes. filter applies to that single
// computation only.
type SrcSetter interface {
	SrcSet(ctx context.Context, attachmentID int64, size string, filter domain.MetadataFilter) (string, error)
}

// RegisterPerformanceLab adds the dominant color, transparency and
// format-variant srcset fields to the media item types.
func RegisterPerformanceLab(r *Registry, srcsets SrcSetter) error {
	if srcsets == nil {
		return errors.New("srcset calculator is required")
	}

	if err := r.RegisterEnum(TypePerformanceLabVariant, "Image format variant to build a srcset with.", map[string]EnumValue{
		"ORIGINAL": {Value: string(domain.VariantOriginal), Description: "The files as uploaded."},
		"WEBP":     {Value: string(domain.VariantWebP), Description: "WebP renditions only."},
	}); err != nil {
		return err
	}

	if err := r.RegisterEnum(TypeDominantColorFormat, "Format to return the dominant color in.", map[string]EnumValue{
		"HEX": {Value: string(domain.DominantColorHex), Description: "Hexadecimal notation prefixed with #."},
	}); err != nil {
		return err
	}

	if err := r.RegisterInterface(TypePerformanceLab, InterfaceConfig{
		Description: "Image optimization details for a media item.",
		Fields: map[string]FieldConfig{
			"dominantColor": {
				Type:        "String",
				Description: "The dominant color calculated for the image to use as placeholder background with that color.",
				Args: map[string]ArgConfig{
					"format": {Type: TypeDominantColorFormat, Description: "The format to return color"},
				},
				Resolve: resolveDominantColor,
			},
			"hasTransparency": {
				Type:        "Boolean",
				Description: "Whether the image has transparent pixels.",
				Resolve:     resolveHasTransparency,
			},
			"srcSet": {
				Type:        "String",
				Description: "The srcset attribute specifies the URL of the image to use in different situations. It is a comma separated string of urls and their widths.",
				Args: map[string]ArgConfig{
					"size":    {Type: TypeMediaItemSizeEnum, Description: "Size of the MediaItem to calculate srcSet with"},
					"variant": {Type: TypePerformanceLabVariant, Description: "Variant of the MediaItem to calculate srcSet with."},
				},
				Resolve: srcSetResolver(srcsets),
			},
		},
	}); err != nil {
		return err
	}

	r.RegisterInterfacesToTypes([]string{TypePerformanceLab}, []string{"mediaItem", TypeMediaItem})
	return nil
}

func sourceItem(p graphql.ResolveParams) (Item, error) {
	item, ok := p.Source.(Item)
	if !ok {
		return nil, fmt.Errorf("unexpected media item source %T", p.Source)
	}
	return item, nil
}

func resolveDominantColor(p graphql.ResolveParams) (any, error) {
	item, err := sourceItem(p)
	if err != nil {
		return nil, err
	}
	meta, ok, err := item.Metadata(resolveContext(p))
	if err != nil {
		return nil, fmt.Errorf("load metadata for media item %d: %w", item.DatabaseID(), err)
	}
	if !ok {
		return nil, nil
	}

	format, _ := p.Args["format"].(string)
	color, ok := domain.FormatDominantColor(meta.DominantColor, domain.DominantColorFormat(format))
	if !ok {
		return nil, nil
	}
	return color, nil
}

func resolveHasTransparency(p graphql.ResolveParams) (any, error) {
	item, err := sourceItem(p)
	if err != nil {
		return nil, err
	}
	meta, ok, err := item.Metadata(resolveContext(p))
	if err != nil {
		return nil, fmt.Errorf("load metadata for media item %d: %w", item.DatabaseID(), err)
	}
	return ok && meta.HasTransparency, nil
}

func srcSetResolver(srcsets SrcSetter) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		item, err := sourceItem(p)
		if err != nil {
			return nil, err
		}

		size := DefaultSrcSetSize
		if v, _ := p.Args["size"].(string); v != "" {
			size = v
		}

		raw, _ := p.Args["variant"].(string)
		variant, err := domain.ParseVariant(raw)
		if err != nil {
			return nil, err
		}

		srcset, err := srcsets.SrcSet(resolveContext(p), item.DatabaseID(), size, variant.Filter())
		if err != nil {
			return nil, err
		}
		if srcset == "" {
			return nil, nil
		}
		return srcset, nil
	}
}

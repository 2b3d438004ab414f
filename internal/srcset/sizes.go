package srcset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SizeFull names the original upload; it is never an intermediate size.
const SizeFull = "full"

type Size struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Crop   bool   `yaml:"crop"`
}

// Registry holds the intermediate image sizes known to the media library,
// in registration order.
type Registry struct {
	sizes []Size
	index map[string]int
}

func DefaultRegistry() *Registry {
	r, _ := NewRegistry([]Size{
		{Name: "thumbnail", Width: 150, Height: 150, Crop: true},
		{Name: "medium", Width: 300, Height: 300},
		{Name: "medium_large", Width: 768, Height: 0},
		{Name: "large", Width: 1024, Height: 1024},
		{Name: "1536x1536", Width: 1536, Height: 1536},
		{Name: "2048x2048", Width: 2048, Height: 2048},
	})
	return r
}

func NewRegistry(sizes []Size) (*Registry, error) {
	r := &Registry{
		sizes: make([]Size, 0, len(sizes)),
		index: make(map[string]int, len(sizes)),
	}
	for i, size := range sizes {
		name := strings.TrimSpace(size.Name)
		if name == "" {
			return nil, fmt.Errorf("sizes[%d].name is required", i)
		}
		if name == SizeFull {
			return nil, fmt.Errorf("sizes[%d]: %q is reserved", i, SizeFull)
		}
		if size.Width < 0 || size.Height < 0 {
			return nil, fmt.Errorf("sizes[%d]: dimensions must not be negative", i)
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("duplicate size %q", name)
		}
		size.Name = name
		r.index[name] = len(r.sizes)
		r.sizes = append(r.sizes, size)
	}
	if len(r.sizes) == 0 {
		return nil, errors.New("at least one image size is required")
	}
	return r, nil
}

// LoadRegistry reads a YAML document of the form
//
//	sizes:
//	  - name: thumbnail
//	    width: 150
//	    height: 150
//	    crop: true
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image sizes file %s: %w", path, err)
	}

	var doc struct {
		Sizes []Size `yaml:"sizes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse image sizes file %s: %w", path, err)
	}
	return NewRegistry(doc.Sizes)
}

// LoadRegistryOrDefault loads path, or returns the default sizes when path
// is empty.
func LoadRegistryOrDefault(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRegistry(), nil
	}
	return LoadRegistry(path)
}

func (r *Registry) Lookup(name string) (Size, bool) {
	i, ok := r.index[name]
	if !ok {
		return Size{}, false
	}
	return r.sizes[i], true
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sizes))
	for _, size := range r.sizes {
		names = append(names, size.Name)
	}
	return names
}

// Constrain fits width x height into the bounds of the named size. Unknown
// names and the full size are left unconstrained.
func (r *Registry) Constrain(width, height int, name string) (int, int) {
	size, ok := r.Lookup(name)
	if !ok {
		return width, height
	}
	return constrainDimensions(width, height, size.Width, size.Height)
}

// constrainDimensions scales current dimensions down proportionally so they
// fit maxWidth x maxHeight. A zero bound does not constrain that axis.
func constrainDimensions(currentWidth, currentHeight, maxWidth, maxHeight int) (int, int) {
	if maxWidth == 0 && maxHeight == 0 {
		return currentWidth, currentHeight
	}

	widthRatio, heightRatio := 1.0, 1.0
	didWidth, didHeight := false, false

	if maxWidth > 0 && currentWidth > 0 && currentWidth > maxWidth {
		widthRatio = float64(maxWidth) / float64(currentWidth)
		didWidth = true
	}
	if maxHeight > 0 && currentHeight > 0 && currentHeight > maxHeight {
		heightRatio = float64(maxHeight) / float64(currentHeight)
		didHeight = true
	}

	smaller := math.Min(widthRatio, heightRatio)
	larger := math.Max(widthRatio, heightRatio)

	ratio := larger
	if int(math.Round(float64(currentWidth)*larger)) > maxWidth || int(math.Round(float64(currentHeight)*larger)) > maxHeight {
		ratio = smaller
	}

	w := max(1, int(math.Round(float64(currentWidth)*ratio)))
	h := max(1, int(math.Round(float64(currentHeight)*ratio)))

	// Rounding can land one pixel short of the bound.
	if didWidth && w == maxWidth-1 {
		w = maxWidth
	}
	if didHeight && h == maxHeight-1 {
		h = maxHeight
	}
	return w, h
}

// matchesRatio reports whether two sizes share an aspect ratio within 1px,
// measured against the smaller of the two.
func matchesRatio(sourceWidth, sourceHeight, targetWidth, targetHeight int) bool {
	var constrainedW, constrainedH, expectedW, expectedH int
	if sourceWidth > targetWidth {
		constrainedW, constrainedH = constrainDimensions(sourceWidth, sourceHeight, targetWidth, 0)
		expectedW, expectedH = targetWidth, targetHeight
	} else {
		constrainedW, constrainedH = constrainDimensions(targetWidth, targetHeight, sourceWidth, 0)
		expectedW, expectedH = sourceWidth, sourceHeight
	}
	return fuzzyMatch(constrainedW, expectedW) && fuzzyMatch(constrainedH, expectedH)
}

func fuzzyMatch(a, b int) bool {
	d := a - b
	return d >= -1 && d <= 1
}

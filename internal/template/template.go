// Package template provides the static registry of video presets.
// A template selects an animation style, a clip duration and a bundled
// music track. The registry is built once at startup and never mutated.
package template

import (
	"errors"
	"fmt"
	"sort"
)

// Style selects the animation applied to the source image.
type Style string

const (
	// StyleZoom renders a slow eased zoom into the image.
	StyleZoom Style = "zoom"
	// StyleSlide renders a left-to-right pan across the image.
	StyleSlide Style = "slide"
)

// IsValid returns true if the style is a known animation style.
func (s Style) IsValid() bool {
	return s == StyleZoom || s == StyleSlide
}

// Template is an immutable video preset.
type Template struct {
	// ID is the identifier clients select the preset by.
	ID string
	// Style is the animation style.
	Style Style
	// DurationSeconds is the exact output clip length.
	DurationSeconds int
	// MusicFile is the bundled audio track filename, relative to the
	// configured assets directory.
	MusicFile string
}

// ErrTemplateNotFound is returned when a template ID is not registered.
var ErrTemplateNotFound = errors.New("template not found")

// Registry holds the set of available templates, looked up by ID.
type Registry struct {
	templates map[string]Template
}

// defaults is the built-in preset catalogue.
var defaults = []Template{
	{ID: "zoom-ambient", Style: StyleZoom, DurationSeconds: 6, MusicFile: "ambient.mp3"},
	{ID: "zoom-upbeat", Style: StyleZoom, DurationSeconds: 8, MusicFile: "upbeat.mp3"},
	{ID: "zoom-cinematic", Style: StyleZoom, DurationSeconds: 10, MusicFile: "cinematic.mp3"},
	{ID: "slide-funky", Style: StyleSlide, DurationSeconds: 8, MusicFile: "funky.mp3"},
	{ID: "slide-chill", Style: StyleSlide, DurationSeconds: 6, MusicFile: "chill.mp3"},
}

// NewRegistry creates a registry with the built-in presets.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]Template, len(defaults))}
	for _, t := range defaults {
		r.templates[t.ID] = t
	}
	return r
}

// NewRegistryWith creates a registry from an explicit template list.
// It returns an error if a template is invalid or a duplicate.
func NewRegistryWith(templates []Template) (*Registry, error) {
	r := &Registry{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if err := t.validate(); err != nil {
			return nil, err
		}
		if _, exists := r.templates[t.ID]; exists {
			return nil, fmt.Errorf("duplicate template ID %q", t.ID)
		}
		r.templates[t.ID] = t
	}
	return r, nil
}

func (t Template) validate() error {
	if t.ID == "" {
		return errors.New("template ID must not be empty")
	}
	if !t.Style.IsValid() {
		return fmt.Errorf("template %q: unknown style %q", t.ID, t.Style)
	}
	if t.DurationSeconds <= 0 {
		return fmt.Errorf("template %q: duration must be positive, got %d", t.ID, t.DurationSeconds)
	}
	if t.MusicFile == "" {
		return fmt.Errorf("template %q: music file must not be empty", t.ID)
	}
	return nil
}

// Lookup returns the template registered under id.
func (r *Registry) Lookup(id string) (Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, id)
	}
	return t, nil
}

// List returns all registered templates sorted by ID.
func (r *Registry) List() []Template {
	out := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Package config loads viewer settings from JSONC files and merges them
// with defaults and command line overrides.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/gogpu/docview"
	"github.com/gogpu/docview/cache"
	"github.com/gogpu/docview/geometry"
)

// FileName is the config file looked up in the working directory when no
// path is given.
const FileName = ".docview.json"

var (
	ErrInvalid      = errors.New("config: invalid")
	ErrFileNotFound = errors.New("config: file not found")
	ErrFileRead     = errors.New("config: cannot read file")
)

// Config holds resolved viewer settings.
type Config struct {
	FitPolicy   geometry.FitPolicy
	DualPage    bool
	Vertical    bool
	Spacing     float64
	AutoSpacing bool
	FitEachPage bool
	Landscape   bool
	Annotations bool
	BestQuality bool

	CacheSize          int
	ThumbnailCacheSize int
	PartSize           int
	ThumbnailRatio     float64
	PreloadOffset      float64
	MinZoom            float64
	MaxZoom            float64

	// Source is the file the settings were read from, empty if none.
	Source string
}

// Default returns the built-in settings.
func Default() Config {
	l := geometry.DefaultOptions()
	return Config{
		FitPolicy:          l.FitPolicy,
		Vertical:           l.Vertical,
		Spacing:            l.Spacing,
		CacheSize:          cache.DefaultCapacity,
		ThumbnailCacheSize: cache.DefaultThumbnailCapacity,
		PartSize:           docview.DefaultPartSize,
		ThumbnailRatio:     docview.DefaultThumbnailRatio,
		PreloadOffset:      docview.DefaultPreloadOffset,
		MinZoom:            docview.DefaultMinZoom,
		MaxZoom:            docview.DefaultMaxZoom,
	}
}

// Overlay is a partial configuration. Nil fields leave the base value
// unchanged. It is both the file format and the shape of command line
// overrides.
type Overlay struct {
	FitPolicy   *string  `json:"fit_policy,omitempty"`
	DualPage    *bool    `json:"dual_page,omitempty"`
	Vertical    *bool    `json:"vertical,omitempty"`
	Spacing     *float64 `json:"spacing_px,omitempty"`
	AutoSpacing *bool    `json:"auto_spacing,omitempty"`
	FitEachPage *bool    `json:"fit_each_page,omitempty"`
	Landscape   *bool    `json:"landscape,omitempty"`
	Annotations *bool    `json:"annotations,omitempty"`
	BestQuality *bool    `json:"best_quality,omitempty"`

	CacheSize          *int     `json:"cache_size,omitempty"`
	ThumbnailCacheSize *int     `json:"thumbnail_cache_size,omitempty"`
	PartSize           *int     `json:"part_size,omitempty"`
	ThumbnailRatio     *float64 `json:"thumbnail_ratio,omitempty"`
	PreloadOffset      *float64 `json:"preload_offset,omitempty"`
	MinZoom            *float64 `json:"min_zoom,omitempty"`
	MaxZoom            *float64 `json:"max_zoom,omitempty"`
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	Path      string  // explicit config file; must exist when set
	WorkDir   string  // directory searched for FileName when Path is empty
	Overrides Overlay // command line values, applied last
}

// Load resolves settings with the following precedence (highest wins):
// 1. Defaults
// 2. The config file (explicit Path, else FileName in WorkDir if present)
// 3. Overrides.
func Load(in LoadInput) (Config, error) {
	cfg := Default()

	path, mustExist := in.Path, true
	if path == "" && in.WorkDir != "" {
		path, mustExist = filepath.Join(in.WorkDir, FileName), false
	}

	if path != "" {
		file, loaded, err := loadFile(path, mustExist)
		if err != nil {
			return Config{}, err
		}
		if loaded {
			if cfg, err = Merge(cfg, file); err != nil {
				return Config{}, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
			}
			cfg.Source = path
		}
	}

	cfg, err := Merge(cfg, in.Overrides)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

func loadFile(path string, mustExist bool) (Overlay, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Overlay{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return Overlay{}, false, nil
		}
		return Overlay{}, false, fmt.Errorf("%w: %s: %w", ErrFileRead, path, err)
	}

	o, err := Parse(data)
	if err != nil {
		return Overlay{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}
	return o, true, nil
}

// Parse decodes a JSONC document. Comments and trailing commas are allowed;
// unknown keys are rejected.
func Parse(data []byte) (Overlay, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Overlay{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var o Overlay
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return Overlay{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return o, nil
}

// Merge applies the set fields of overlay to base.
func Merge(base Config, overlay Overlay) (Config, error) {
	if overlay.FitPolicy != nil {
		p, err := geometry.ParseFitPolicy(*overlay.FitPolicy)
		if err != nil {
			return Config{}, err
		}
		base.FitPolicy = p
	}
	set(&base.DualPage, overlay.DualPage)
	set(&base.Vertical, overlay.Vertical)
	set(&base.Spacing, overlay.Spacing)
	set(&base.AutoSpacing, overlay.AutoSpacing)
	set(&base.FitEachPage, overlay.FitEachPage)
	set(&base.Landscape, overlay.Landscape)
	set(&base.Annotations, overlay.Annotations)
	set(&base.BestQuality, overlay.BestQuality)
	set(&base.CacheSize, overlay.CacheSize)
	set(&base.ThumbnailCacheSize, overlay.ThumbnailCacheSize)
	set(&base.PartSize, overlay.PartSize)
	set(&base.ThumbnailRatio, overlay.ThumbnailRatio)
	set(&base.PreloadOffset, overlay.PreloadOffset)
	set(&base.MinZoom, overlay.MinZoom)
	set(&base.MaxZoom, overlay.MaxZoom)
	return base, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Validate reports the first out of range setting.
func Validate(cfg Config) error {
	switch {
	case cfg.Spacing < 0:
		return fmt.Errorf("spacing_px must not be negative, got %v", cfg.Spacing)
	case cfg.CacheSize < 1:
		return fmt.Errorf("cache_size must be at least 1, got %d", cfg.CacheSize)
	case cfg.ThumbnailCacheSize < 1:
		return fmt.Errorf("thumbnail_cache_size must be at least 1, got %d", cfg.ThumbnailCacheSize)
	case cfg.PartSize < 1:
		return fmt.Errorf("part_size must be at least 1, got %d", cfg.PartSize)
	case cfg.ThumbnailRatio <= 0 || cfg.ThumbnailRatio > 1:
		return fmt.Errorf("thumbnail_ratio must be in (0, 1], got %v", cfg.ThumbnailRatio)
	case cfg.PreloadOffset < 0:
		return fmt.Errorf("preload_offset must not be negative, got %v", cfg.PreloadOffset)
	case cfg.MinZoom <= 0 || cfg.MaxZoom < cfg.MinZoom:
		return fmt.Errorf("zoom range [%v, %v] is invalid", cfg.MinZoom, cfg.MaxZoom)
	}
	return nil
}

// Layout returns the layout part of cfg.
func (cfg Config) Layout() geometry.Options {
	return geometry.Options{
		FitPolicy:   cfg.FitPolicy,
		DualPage:    cfg.DualPage,
		Vertical:    cfg.Vertical,
		Spacing:     cfg.Spacing,
		AutoSpacing: cfg.AutoSpacing,
		FitEachPage: cfg.FitEachPage,
		Landscape:   cfg.Landscape,
	}
}

// Options converts cfg to options for docview.Open and docview.NewViewer.
func (cfg Config) Options() []docview.Option {
	return []docview.Option{
		docview.WithLayout(cfg.Layout()),
		docview.WithCacheSize(cfg.CacheSize),
		docview.WithThumbnailCacheSize(cfg.ThumbnailCacheSize),
		docview.WithPartSize(cfg.PartSize),
		docview.WithThumbnailRatio(cfg.ThumbnailRatio),
		docview.WithPreloadOffset(cfg.PreloadOffset),
		docview.WithZoomRange(cfg.MinZoom, cfg.MaxZoom),
		docview.WithBestQuality(cfg.BestQuality),
		docview.WithAnnotations(cfg.Annotations),
	}
}

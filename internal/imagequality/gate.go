// Package imagequality rejects proof images that are too small or too large
// before any classifier quota is spent on them.
package imagequality

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	// Registered decoders for DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Default limits.
const (
	DefaultMinWidth  = 200
	DefaultMinHeight = 200
	DefaultMaxBytes  = 10 << 20
)

// Rejection reasons surfaced to the submitter.
const (
	ReasonTooSmall = "Image too small (minimum 200x200 pixels for AI analysis)"
	ReasonTooLarge = "Image file too large (maximum 10MB)"
)

// ErrInvalidImage is returned when the bytes cannot be decoded as a supported image.
var ErrInvalidImage = errors.New("invalid image file")

// GateConfig configures the gate.
type GateConfig struct {
	MinWidth  int
	MinHeight int
	MaxBytes  int64
}

// Result is the gate outcome. Width and Height are zero when the size check
// failed before decoding.
type Result struct {
	OK        bool
	Reason    string
	Width     int
	Height    int
	SizeBytes int64
	Format    string
}

// Gate validates proof images.
type Gate struct {
	cfg      GateConfig
	tooSmall string
	tooLarge string
}

// NewGate creates a gate, filling zero limits with the defaults.
func NewGate(cfg GateConfig) *Gate {
	if cfg.MinWidth <= 0 {
		cfg.MinWidth = DefaultMinWidth
	}
	if cfg.MinHeight <= 0 {
		cfg.MinHeight = DefaultMinHeight
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	g := &Gate{cfg: cfg, tooSmall: ReasonTooSmall, tooLarge: ReasonTooLarge}
	if cfg.MinWidth != DefaultMinWidth || cfg.MinHeight != DefaultMinHeight {
		g.tooSmall = fmt.Sprintf("Image too small (minimum %dx%d pixels for AI analysis)", cfg.MinWidth, cfg.MinHeight)
	}
	if cfg.MaxBytes != DefaultMaxBytes {
		g.tooLarge = fmt.Sprintf("Image file too large (maximum %dMB)", cfg.MaxBytes>>20)
	}
	return g
}

// Config returns the effective limits.
func (g *Gate) Config() GateConfig {
	return g.cfg
}

// Validate checks size first, then reads only the image header for dimensions.
// declaredPath is used for error context only; the format is sniffed from content.
func (g *Gate) Validate(data []byte, declaredPath string) (Result, error) {
	res := Result{SizeBytes: int64(len(data))}

	if res.SizeBytes > g.cfg.MaxBytes {
		res.Reason = g.tooLarge
		return res, nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		name := filepath.Base(declaredPath)
		if name == "." || name == "/" {
			name = "upload"
		}
		return res, fmt.Errorf("%w: %s: %w", ErrInvalidImage, name, err)
	}

	res.Width = cfg.Width
	res.Height = cfg.Height
	res.Format = strings.ToLower(format)

	if res.Width < g.cfg.MinWidth || res.Height < g.cfg.MinHeight {
		res.Reason = g.tooSmall
		return res, nil
	}

	res.OK = true
	return res, nil
}

package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentVersion is the document format written by this build.
const CurrentVersion = 2

// ErrNotFound is returned by a ConfigStore when no document exists for a key.
var ErrNotFound = errors.New("editor config not found")

// Gradient is a named colour or gradient shared by elements and chrome.
type Gradient struct {
	Kind   string   `json:"kind"` // solid | linear | radial
	Colors []string `json:"colors"`
	Angle  float64  `json:"angle"`
}

// Layout holds page-level layout metadata.
type Layout struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Background string  `json:"background"`
	Padding    float64 `json:"padding"`
}

// Settings are the document's global settings.
type Settings struct {
	Grid       bool                `json:"grid"`
	GridSize   float64             `json:"gridSize"`
	SnapToGrid bool                `json:"snapToGrid"`
	Theme      string              `json:"theme"`
	Gradients  map[string]Gradient `json:"gradients"`
	Layout     Layout              `json:"layout"`
}

// EditorConfig is the root document of one editor session. Element order is
// render order: later elements stack above earlier ones.
type EditorConfig struct {
	Version  int       `json:"version"`
	Elements []Element `json:"elements"`
	Settings Settings  `json:"settings"`
}

// ConfigStore is the persistence boundary for editor documents. Documents
// cross it in their serialized JSON form so that partial and legacy
// documents keep the difference between "missing" and "zero".
type ConfigStore interface {
	// LoadConfig returns the stored document or ErrNotFound.
	LoadConfig(ctx context.Context, key string) ([]byte, error)
	// SaveConfig replaces the stored document for key.
	SaveConfig(ctx context.Context, key string, doc []byte) error
}

// ToTree converts a typed config into its document tree.
func ToTree(cfg *EditorConfig) (map[string]any, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode editor config: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode editor config tree: %w", err)
	}
	return tree, nil
}

// FromTree decodes a document tree into the typed config.
func FromTree(tree map[string]any) (*EditorConfig, error) {
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode editor config tree: %w", err)
	}
	var cfg EditorConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode editor config: %w", err)
	}
	return &cfg, nil
}

// ElementByID returns the element with the given id.
func (c *EditorConfig) ElementByID(id string) (*Element, bool) {
	for i := range c.Elements {
		if c.Elements[i].ID == id {
			return &c.Elements[i], true
		}
	}
	return nil, false
}

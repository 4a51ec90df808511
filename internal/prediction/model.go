package prediction

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// HeuristicVersion is reported as the model version when no regression
// model is loaded.
const HeuristicVersion = "heuristic-1.0"

// Regressor maps a feature vector to a predicted half-marathon time in
// seconds.
type Regressor interface {
	Predict(features []float64) (float64, error)
}

// Metadata describes the loaded model.
type Metadata struct {
	Kind         string   `json:"kind"`
	Version      string   `json:"version"`
	Source       string   `json:"source"`
	FeatureOrder []string `json:"feature_order"`
	Loaded       bool     `json:"loaded"`
}

// ModelHandle holds an optional regressor and its metadata. It is built once
// at startup and only read afterwards.
type ModelHandle struct {
	regressor Regressor
	meta      Metadata
}

// NewModelHandle wraps a regressor. A nil regressor yields an empty handle.
func NewModelHandle(r Regressor, meta Metadata) *ModelHandle {
	if r == nil {
		return EmptyHandle()
	}
	meta.Loaded = true
	return &ModelHandle{regressor: r, meta: meta}
}

// EmptyHandle returns a handle without a model; predictions use the
// heuristic.
func EmptyHandle() *ModelHandle {
	return &ModelHandle{meta: Metadata{
		Kind:    "heuristic",
		Version: HeuristicVersion,
		Source:  "heuristic",
	}}
}

// Loaded reports whether the handle holds a regressor.
func (h *ModelHandle) Loaded() bool {
	return h != nil && h.regressor != nil
}

// Metadata returns a copy of the handle's metadata.
func (h *ModelHandle) Metadata() Metadata {
	if h == nil {
		return EmptyHandle().meta
	}
	meta := h.meta
	meta.FeatureOrder = append([]string(nil), h.meta.FeatureOrder...)
	return meta
}

// LinearModel is a linear regression over named features.
type LinearModel struct {
	Intercept    float64
	FeatureOrder []string
	Coefficients []float64
}

// Predict returns the intercept plus the dot product of coefficients and
// features.
func (m *LinearModel) Predict(features []float64) (float64, error) {
	if len(features) != len(m.Coefficients) {
		return 0, fmt.Errorf("feature vector has %d values, model expects %d", len(features), len(m.Coefficients))
	}
	y := m.Intercept
	for i, c := range m.Coefficients {
		y += c * features[i]
	}
	return y, nil
}

// artifactFile is the on-disk model format. JSON files parse as well, being
// valid YAML.
type artifactFile struct {
	Kind         string    `yaml:"kind"`
	Version      string    `yaml:"version"`
	Intercept    float64   `yaml:"intercept"`
	FeatureOrder []string  `yaml:"feature_order"`
	Coefficients []float64 `yaml:"coefficients"`
}

var errUnsupportedKind = errors.New("unsupported model kind")

// ParseArtifact decodes a model artifact. Only kind "linear" is supported;
// an empty kind means linear.
func ParseArtifact(data []byte) (*LinearModel, Metadata, error) {
	var f artifactFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, Metadata{}, fmt.Errorf("decode artifact: %w", err)
	}

	if f.Kind == "" {
		f.Kind = "linear"
	}
	if f.Kind != "linear" {
		return nil, Metadata{}, fmt.Errorf("%w: %q", errUnsupportedKind, f.Kind)
	}
	if len(f.FeatureOrder) == 0 {
		return nil, Metadata{}, errors.New("artifact has no features")
	}
	if len(f.FeatureOrder) != len(f.Coefficients) {
		return nil, Metadata{}, fmt.Errorf("artifact has %d features but %d coefficients",
			len(f.FeatureOrder), len(f.Coefficients))
	}
	for i, c := range append([]float64{f.Intercept}, f.Coefficients...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, Metadata{}, fmt.Errorf("artifact coefficient %d is not finite", i)
		}
	}

	model := &LinearModel{
		Intercept:    f.Intercept,
		FeatureOrder: f.FeatureOrder,
		Coefficients: f.Coefficients,
	}
	meta := Metadata{
		Kind:         f.Kind,
		Version:      f.Version,
		FeatureOrder: f.FeatureOrder,
	}
	return model, meta, nil
}

// LoadArtifactFile reads and parses the artifact at path into a handle whose
// source is path.
func LoadArtifactFile(path string) (*ModelHandle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	model, meta, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	meta.Source = path
	return NewModelHandle(model, meta), nil
}

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	LabelGotCrystal = "gotcrystal"
	LabelNoCrystal  = "nocrystal"

	DefaultImageSize = 224
)

// Metadata describes the exported network: tensor names and shapes plus the
// labels aligned with the output vector.
type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	PixelScale  float32  `json:"pixel_scale"`
}

// Prediction is the outcome of one inference.
type Prediction struct {
	Index         int                `json:"index"`
	Class         string             `json:"class"`
	Probability   float32            `json:"probability"`
	Probabilities map[string]float32 `json:"probabilities"`
}

// DefaultMetadata matches the VGG16 crystal model: one 3x224x224 image in,
// two class probabilities out. Pixels are fed as raw 0..255 values because
// the network does its own mean subtraction.
func DefaultMetadata() Metadata {
	return Metadata{
		InputName:   "input",
		OutputName:  "output",
		InputShape:  []int64{1, 3, DefaultImageSize, DefaultImageSize},
		OutputShape: []int64{1, 2},
		Classes:     []string{LabelGotCrystal, LabelNoCrystal},
		ImageSize:   DefaultImageSize,
		PixelScale:  1,
	}
}

// LoadMetadata reads a JSON metadata file. Fields left out of the file keep
// their default values.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	m.fillDefaults()
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

func (m *Metadata) fillDefaults() {
	def := DefaultMetadata()
	if m.InputName == "" {
		m.InputName = def.InputName
	}
	if m.OutputName == "" {
		m.OutputName = def.OutputName
	}
	if len(m.Classes) == 0 {
		m.Classes = def.Classes
	}
	if m.ImageSize == 0 {
		if len(m.InputShape) == 4 {
			m.ImageSize = int(m.InputShape[3])
		} else {
			m.ImageSize = def.ImageSize
		}
	}
	if len(m.InputShape) == 0 {
		m.InputShape = []int64{1, 3, int64(m.ImageSize), int64(m.ImageSize)}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(len(m.Classes))}
	}
	if m.PixelScale == 0 {
		m.PixelScale = def.PixelScale
	}
}

var ErrInvalidMetadata = errors.New("invalid model metadata")

// Validate checks that the shapes describe a single channel-first RGB image
// and that the output has one value per class.
func (m Metadata) Validate() error {
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 || m.InputShape[1] != 3 {
		return fmt.Errorf("%w: input shape %v is not [1 3 H W]", ErrInvalidMetadata, m.InputShape)
	}
	if m.InputShape[2] != m.InputShape[3] || m.InputShape[2] != int64(m.ImageSize) {
		return fmt.Errorf("%w: input shape %v does not match image size %d", ErrInvalidMetadata, m.InputShape, m.ImageSize)
	}
	if len(m.Classes) == 0 {
		return fmt.Errorf("%w: no classes", ErrInvalidMetadata)
	}
	seen := make(map[string]bool, len(m.Classes))
	for _, c := range m.Classes {
		if c == "" || seen[c] {
			return fmt.Errorf("%w: empty or duplicate class %q", ErrInvalidMetadata, c)
		}
		seen[c] = true
	}
	if n := elements(m.OutputShape); n != int64(len(m.Classes)) {
		return fmt.Errorf("%w: output shape %v holds %d values for %d classes", ErrInvalidMetadata, m.OutputShape, n, len(m.Classes))
	}
	if m.PixelScale <= 0 {
		return fmt.Errorf("%w: pixel scale must be positive", ErrInvalidMetadata)
	}
	return nil
}

// InputSize is the number of float32 values the network expects.
func (m Metadata) InputSize() int {
	return int(elements(m.InputShape))
}

func elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

package model

import (
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

var ErrNoWeights = errors.New("trained weights not loaded")

// Classifier runs the exported network through ONNX Runtime. It is created
// once at startup and only queried afterwards.
type Classifier struct {
	Metadata Metadata

	logger       *zap.Logger
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewClassifier initializes the runtime environment and allocates the input
// and output tensors. libraryPath may be empty to use the runtime's default
// shared library.
func NewClassifier(meta Metadata, libraryPath string, logger *zap.Logger) (*Classifier, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	logger = logger.Named("model")

	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	logger.Debug("tensors allocated",
		zap.Int64s("input_shape", meta.InputShape),
		zap.Int64s("output_shape", meta.OutputShape),
		zap.Strings("classes", meta.Classes))

	return &Classifier{
		Metadata:     meta,
		logger:       logger,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// LoadWeights opens the ONNX weights file and binds it to the tensors.
func (c *Classifier) LoadWeights(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to open weights: %w", err)
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{c.Metadata.InputName}, []string{c.Metadata.OutputName},
		[]ort.ArbitraryTensor{c.inputTensor}, []ort.ArbitraryTensor{c.outputTensor},
		nil)
	if err != nil {
		return fmt.Errorf("failed to create ONNX session from %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Destroy()
	}
	c.session = session
	c.logger.Info("weights loaded", zap.String("path", path))
	return nil
}

// Predict runs one forward pass over a (1,3,S,S) tensor.
func (c *Classifier) Predict(input []float32) (*Prediction, error) {
	if want := c.Metadata.InputSize(); len(input) != want {
		return nil, fmt.Errorf("expected %d input values, got %d", want, len(input))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, ErrNoWeights
	}

	copy(c.inputTensor.GetData(), input)
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return NewPrediction(c.outputTensor.GetData(), c.Metadata.Classes)
}

func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	ort.DestroyEnvironment()
}

// NewPrediction maps a probability vector onto its labels.
func NewPrediction(output []float32, classes []string) (*Prediction, error) {
	if len(output) != len(classes) {
		return nil, fmt.Errorf("model returned %d values for %d classes", len(output), len(classes))
	}

	idx := Argmax(output)
	probs := make(map[string]float32, len(classes))
	for i, v := range output {
		probs[classes[i]] = v
	}

	return &Prediction{
		Index:         idx,
		Class:         classes[idx],
		Probability:   output[idx],
		Probabilities: probs,
	}, nil
}

// Argmax returns the index of the largest value. Ties go to the lowest index.
// It returns -1 for an empty slice.
func Argmax(values []float32) int {
	if len(values) == 0 {
		return -1
	}
	maxIdx := 0
	for i, v := range values[1:] {
		if v > values[maxIdx] {
			maxIdx = i + 1
		}
	}
	return maxIdx
}

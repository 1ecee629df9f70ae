package classify

import (
	"fmt"
	"image"

	"github.com/Brownie44l1/crystal-classifier/internal/imaging"
	"github.com/Brownie44l1/crystal-classifier/internal/model"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

// Predictor is the inference half of the pipeline. *model.Classifier
// satisfies it.
type Predictor interface {
	Predict(input []float32) (*model.Prediction, error)
}

// Pipeline turns an image path into a prediction.
type Pipeline struct {
	Predictor  Predictor
	ImageSize  int
	Interp     resize.InterpolationFunction
	PixelScale float32
	Logger     *zap.Logger
}

type Result struct {
	Path       string
	Image      image.Image
	Prediction *model.Prediction
}

// New builds a pipeline sized from the model metadata.
func New(p Predictor, meta model.Metadata, interp resize.InterpolationFunction, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		Predictor:  p,
		ImageSize:  meta.ImageSize,
		Interp:     interp,
		PixelScale: meta.PixelScale,
		Logger:     logger.Named("pipeline"),
	}
}

// Load opens and decodes the image. Errors wrap imaging.ErrUnreadable or
// imaging.ErrDecode.
func (p *Pipeline) Load(path string) (image.Image, error) {
	img, format, err := imaging.Open(path)
	if err != nil {
		return nil, err
	}
	p.Logger.Debug("image decoded",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))
	return img, nil
}

// Tensor resizes img and lays it out as (1, 3, size, size).
func (p *Pipeline) Tensor(img image.Image) []float32 {
	resized := imaging.Resize(img, p.ImageSize, p.Interp)
	data, shape := imaging.ToTensor(resized, p.PixelScale)
	p.Logger.Debug("image preprocessed", zap.Int64s("shape", shape))
	return data
}

// Predict runs the network over an already loaded image.
func (p *Pipeline) Predict(img image.Image) (*model.Prediction, error) {
	pred, err := p.Predictor.Predict(p.Tensor(img))
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return pred, nil
}

// File runs every stage for one path.
func (p *Pipeline) File(path string) (*Result, error) {
	img, err := p.Load(path)
	if err != nil {
		return nil, err
	}
	pred, err := p.Predict(img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Result{Path: path, Image: img, Prediction: pred}, nil
}

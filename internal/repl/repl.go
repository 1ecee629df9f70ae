// Package repl implements the interactive prompt: read a path, classify the
// image, print the label, show the image, repeat.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Brownie44l1/crystal-classifier/internal/classify"
	"github.com/Brownie44l1/crystal-classifier/internal/display"
	"github.com/Brownie44l1/crystal-classifier/internal/imaging"
	"go.uber.org/zap"
)

const (
	MsgCreating   = "Creating new vgg instance..."
	MsgLoading    = "Loading trained weights..."
	MsgPrompt     = "Enter image path: "
	MsgPredicting = "Predicting image..."
	MsgNoSuchFile = "No such file or directory, type in another file path"
)

type Loop struct {
	In       io.Reader
	Out      io.Writer
	Pipeline *classify.Pipeline
	Display  display.Displayer
	Logger   *zap.Logger
}

func New(in io.Reader, out io.Writer, p *classify.Pipeline, d display.Displayer, logger *zap.Logger) *Loop {
	if d == nil {
		d = display.Nop{}
	}
	return &Loop{
		In:       in,
		Out:      out,
		Pipeline: p,
		Display:  d,
		Logger:   logger.Named("repl"),
	}
}

// Run prompts until the input ends, ctx is cancelled, or an unrecoverable
// error occurs. End of input returns nil. Only unreadable paths are
// recovered from; everything else is returned.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(l.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprintln(l.Out, MsgPrompt)

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-readErr:
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
			default:
			}
			l.Logger.Debug("input closed")
			return nil
		}

		if err := l.step(strings.TrimSpace(line)); err != nil {
			return err
		}
	}
}

func (l *Loop) step(path string) error {
	img, err := l.Pipeline.Load(path)
	if errors.Is(err, imaging.ErrUnreadable) {
		l.Logger.Debug("unreadable path", zap.String("path", path), zap.Error(err))
		fmt.Fprintln(l.Out, MsgNoSuchFile)
		return nil
	}
	if err != nil {
		return err
	}

	tensor := l.Pipeline.Tensor(img)

	fmt.Fprintln(l.Out, MsgPredicting)
	pred, err := l.Pipeline.Predictor.Predict(tensor)
	if err != nil {
		return fmt.Errorf("predict %s: %w", path, err)
	}
	fmt.Fprintf(l.Out, "Predicted label: %s with probability %s\n", pred.Class, classify.FormatProbability(pred.Probability))

	if err := l.Display.Display(path); err != nil {
		l.Logger.Warn("display failed", zap.String("path", path), zap.Error(err))
	}
	return nil
}

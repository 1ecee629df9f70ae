package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Brownie44l1/crystal-classifier/internal/classify"
	"github.com/Brownie44l1/crystal-classifier/internal/config"
	"github.com/Brownie44l1/crystal-classifier/internal/display"
	"github.com/Brownie44l1/crystal-classifier/internal/imaging"
	"github.com/Brownie44l1/crystal-classifier/internal/logging"
	"github.com/Brownie44l1/crystal-classifier/internal/model"
	"github.com/Brownie44l1/crystal-classifier/internal/repl"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is the application version.
const Version = "0.1.0"

// Options holds the flags shared by the interactive loop and batch mode.
type Options struct {
	WeightsPath  string
	MetadataPath string
	ORTLibrary   string
	Interp       string
	Viewer       string
	NoDisplay    bool
	LogLevel     string

	logger *zap.Logger
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "crystal",
		Short: "Classify protein crystallization images with a trained VGG16 model",
		Long: "Loads the trained network once, then repeatedly asks for an image path,\n" +
			"prints the predicted label (gotcrystal or nocrystal) with its probability\n" +
			"and opens the image in a viewer.",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(opts.LogLevel)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.WeightsPath, "weights", "w", cfg.WeightsPath, "Trained ONNX model file")
	flags.StringVarP(&opts.MetadataPath, "metadata", "m", cfg.MetadataPath, "Model metadata JSON (default: built-in VGG16 crystal layout)")
	flags.StringVar(&opts.ORTLibrary, "ort-lib", cfg.ORTLibrary, "Path to the onnxruntime shared library")
	flags.StringVar(&opts.Interp, "interp", cfg.Interp, "Resize interpolation: nearest, bilinear, bicubic, mitchell, lanczos2, lanczos3")
	flags.StringVar(&opts.LogLevel, "log-level", cfg.LogLevel, "Diagnostic log level (debug, info, warn, error)")
	root.Flags().StringVar(&opts.Viewer, "viewer", cfg.Viewer, "Command used to show each image (default: platform opener)")
	root.Flags().BoolVar(&opts.NoDisplay, "no-display", false, "Do not open images after classifying them")

	root.AddCommand(newClassifyCmd(opts))
	return root
}

// loadModel constructs the classifier and restores its weights, reporting
// each step on status.
func loadModel(opts *Options, status io.Writer) (*model.Classifier, error) {
	meta := model.DefaultMetadata()
	if opts.MetadataPath != "" {
		var err error
		if meta, err = model.LoadMetadata(opts.MetadataPath); err != nil {
			return nil, err
		}
	}

	fmt.Fprintln(status, repl.MsgCreating)
	clf, err := model.NewClassifier(meta, opts.ORTLibrary, opts.logger)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(status, repl.MsgLoading)
	if err := clf.LoadWeights(opts.WeightsPath); err != nil {
		clf.Close()
		return nil, err
	}
	return clf, nil
}

func runInteractive(ctx context.Context, opts *Options, in io.Reader, out io.Writer) error {
	interp, err := imaging.ParseInterpolation(opts.Interp)
	if err != nil {
		return err
	}

	clf, err := loadModel(opts, out)
	if err != nil {
		return err
	}
	defer clf.Close()

	var disp display.Displayer = display.Nop{}
	if !opts.NoDisplay {
		disp = display.NewViewer(opts.Viewer, opts.logger)
	}

	pipe := classify.New(clf, clf.Metadata, interp, opts.logger)
	err = repl.New(in, out, pipe, disp, opts.logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		opts.logger.Debug("interrupted")
		return nil
	}
	return err
}

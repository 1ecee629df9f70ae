package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/Brownie44l1/crystal-classifier/internal/classify"
	"github.com/Brownie44l1/crystal-classifier/internal/imaging"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newClassifyCmd(opts *Options) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "classify PATH...",
		Short: "Classify image files or directories without prompting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interp, err := imaging.ParseInterpolation(opts.Interp)
			if err != nil {
				return err
			}

			paths, err := collectPaths(args)
			if err != nil {
				return err
			}

			clf, err := loadModel(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer clf.Close()

			pipe := classify.New(clf, clf.Metadata, interp, opts.logger)
			progress := cmd.ErrOrStderr()
			if quiet {
				progress = io.Discard
			}
			_, err = runBatch(cmd.Context(), pipe, paths, cmd.OutOrStdout(), progress, opts.logger)
			return err
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	return cmd
}

// collectPaths expands directories into the image files directly inside
// them. Plain paths are kept as given, even if they do not exist, so that
// they are reported alongside the rest.
func collectPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if e.Type().IsRegular() && imaging.HasImageExtension(e.Name()) {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

type batchSummary struct {
	Classified  int
	Skipped     int
	Interrupted bool
	Counts      map[string]int
}

// runBatch classifies every path in order, writing one tab separated line
// per image to out. Unreadable files are skipped; any other failure stops
// the run. Cancelling ctx stops early without an error, like the prompt.
func runBatch(ctx context.Context, pipe *classify.Pipeline, paths []string, out, progress io.Writer, logger *zap.Logger) (*batchSummary, error) {
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Classifying"),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	summary := &batchSummary{Counts: make(map[string]int)}
	for _, path := range paths {
		if ctx.Err() != nil {
			bar.Clear()
			summary.Interrupted = true
			logger.Info("batch interrupted",
				zap.Int("classified", summary.Classified),
				zap.Int("remaining", len(paths)-summary.Classified-summary.Skipped))
			return summary, nil
		}

		res, err := pipe.File(path)
		bar.Add(1)
		if errors.Is(err, imaging.ErrUnreadable) {
			summary.Skipped++
			logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			continue
		}
		if err != nil {
			bar.Clear()
			return summary, err
		}

		summary.Classified++
		summary.Counts[res.Prediction.Class]++
		fmt.Fprintf(out, "%s\t%s\t%s\n", path, res.Prediction.Class, classify.FormatProbability(res.Prediction.Probability))
	}
	bar.Finish()

	logger.Info("batch finished",
		zap.Int("classified", summary.Classified),
		zap.Int("skipped", summary.Skipped),
		zap.Any("labels", summary.Counts))
	return summary, nil
}

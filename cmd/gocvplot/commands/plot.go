package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore"
	"github.com/kacperjurak/gocvcore/pkg/plot"
)

func (c *CLI) newPlotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot FILE...",
		Short: "Write one CV graph per workbook",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			d := a.cfg.Defaults

			cycles, err := gocvcore.ParseCycleRange(d.Cycles)
			if err != nil {
				return err
			}
			colors, err := a.cfg.Colors(len(cycles))
			if err != nil {
				return err
			}

			results := a.processFiles(cmd.Context(), args)
			renderFailed := 0
			written := map[string]int{}
			for _, res := range results {
				if !res.Success {
					continue
				}
				opts := d.PlotOptions()
				opts.Cycles = cycles
				opts.Colors = colors
				opts.Label = res.Label
				opts.Logger = a.logger

				path := filepath.Join(d.OutputDirectory, plot.OutputName(d.FilenameTemplate, res.Label))
				if unique := uniquePath(written, path); unique != path {
					a.logger.Warn("output name already used, adding a suffix",
						slog.String("source", res.Path),
						slog.String("label", res.Label),
						slog.String("output", unique),
					)
					path = unique
				}
				err := writeImage(path, func(w io.Writer) error {
					return plot.RenderCV(w, res.Dataset, opts)
				})
				if err != nil {
					zerr.Log(cmd.Context(), a.logger, zerr.With(err, "source", res.Path))
					renderFailed++
					continue
				}
				a.logger.Info("graph saved", slog.String("source", res.Path), slog.String("output", path))
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return failures(results, renderFailed)
		},
	}
}

func (c *CLI) newCompareCmd() *cobra.Command {
	var (
		cycle int
		name  string
	)
	cmd := &cobra.Command{
		Use:   "compare FILE...",
		Short: "Overlay one cycle of several workbooks in a single graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			d := a.cfg.Defaults

			results := a.processFiles(cmd.Context(), args)
			var sets []plot.Labeled
			for _, res := range results {
				if res.Success {
					sets = append(sets, plot.Labeled{Label: res.Label, Dataset: res.Dataset})
				}
			}
			if len(sets) == 0 {
				return failures(results, 0)
			}

			colors, err := a.cfg.Colors(len(sets))
			if err != nil {
				return err
			}
			opts := d.PlotOptions()
			opts.Colors = colors
			opts.Logger = a.logger

			if name == "" {
				name = fmt.Sprintf("Cycle_%d_comparison", cycle)
			}
			path := filepath.Join(d.OutputDirectory, name+".png")
			err = writeImage(path, func(w io.Writer) error {
				return plot.RenderCompare(w, sets, cycle, opts)
			})
			if err != nil {
				return err
			}
			a.logger.Info("comparison saved", slog.Int("cycle", cycle), slog.Int("files", len(sets)), slog.String("output", path))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return failures(results, 0)
		},
	}
	cmd.Flags().IntVar(&cycle, "cycle", 1, "Cycle to compare")
	cmd.Flags().StringVar(&name, "name", "", "Output file name without extension (default Cycle_<n>_comparison)")
	return cmd
}

// writeImage creates path, fills it with render and removes it again when rendering fails.
// uniquePath returns path, or path with a "_N" suffix before the extension when an earlier
// file of the same run already claimed it.
func uniquePath(seen map[string]int, path string) string {
	seen[path]++
	n := seen[path]
	if n == 1 {
		return path
	}
	ext := filepath.Ext(path)
	for {
		candidate := fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, ext), n, ext)
		if seen[candidate] == 0 {
			seen[candidate] = 1
			return candidate
		}
		n++
	}
}

func writeImage(path string, render func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerr.With(zerr.Wrap(err, "create output directory"), "path", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "create image"), "path", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = zerr.With(zerr.Wrap(cerr, "close image"), "path", path)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return render(f)
}

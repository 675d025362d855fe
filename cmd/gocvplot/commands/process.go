package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore/pkg/models"
	"github.com/kacperjurak/gocvcore/pkg/palette"
)

func (c *CLI) newProcessCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "process FILE...",
		Short: "Process workbooks and print their dataset summaries as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := c.app.processFiles(cmd.Context(), args)

			summaries := make([]models.DatasetSummary, 0, len(results))
			for _, res := range results {
				if !res.Success {
					continue
				}
				sum := models.Summarize(res.Path, res.Label, res.Dataset)
				if full {
					sum.Dataset = res.Dataset
				}
				summaries = append(summaries, sum)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summaries); err != nil {
				return zerr.Wrap(err, "write summaries")
			}
			return failures(results, 0)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Include every series of the dataset")
	return cmd
}

func (c *CLI) newPalettesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "palettes",
		Short: "List the configured palettes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.app.cfg
			out := cmd.OutOrStdout()
			for _, name := range cfg.PaletteNames() {
				colors := cfg.Palettes[name]
				if name == palette.Custom {
					colors = []string{cfg.Defaults.CustomStart, cfg.Defaults.CustomEnd}
				}
				marker := " "
				if name == cfg.Defaults.Palette {
					marker = "*"
				}
				if _, err := fmt.Fprintf(out, "%s %s: %s\n", marker, name, strings.Join(colors, " ")); err != nil {
					return zerr.Wrap(err, "write palettes")
				}
			}
			return nil
		},
	}
}

func (c *CLI) newGradientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gradient START END N",
		Short: "Print N colours interpolated between two hex colours",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return zerr.With(zerr.Wrap(err, "parse colour count"), "n", args[2])
			}
			colors, err := palette.Gradient(args[0], args[1], n)
			if err != nil {
				return err
			}
			for _, col := range colors {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), col)
			}
			return nil
		},
	}
}

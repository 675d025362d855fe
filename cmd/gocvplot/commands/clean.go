package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore/pkg/config"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean FILE...",
		Short: "Remove the cached datasets of the given workbooks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.processor.Remove(args...); err != nil {
				return err
			}
			c.app.logger.Info("cache cleaned", slog.Int("files", len(args)))
			return nil
		},
	}
}

func (c *CLI) newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to the --config path",
		Args:  cobra.NoArgs,
		// setup would load the file being created
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := c.flags.config
			if _, err := os.Stat(path); err == nil && !force {
				return zerr.With(zerr.Wrap(fs.ErrExist, "refusing to overwrite configuration"), "path", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return zerr.With(zerr.Wrap(err, "stat configuration"), "path", path)
			}

			if err := config.Default().Save(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

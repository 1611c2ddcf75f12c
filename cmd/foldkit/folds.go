package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"foldkit/internal/editor"
	"foldkit/internal/foldfmt"
)

var foldsCmd = &cobra.Command{
	Use:   "folds [flags] <file.cy>...",
	Short: "List the folding regions of files",
	Long: `Open each file the way an editor would: seed remembered regions, reconcile
with default states and apply the stored folding state. The regions are
listed and the state is written back to the session cache`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFolds,
}

func init() {
	foldsCmd.Flags().Bool("json", false, "print JSON")
	foldsCmd.Flags().Bool("signatures", false, "show region signatures")
	foldsCmd.Flags().Bool("offsets", false, "show byte offsets")
	foldsCmd.Flags().Int("caret", 0, "open with the caret on this 1-based line; regions on it start expanded")
}

func runFolds(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	caret, _ := cmd.Flags().GetInt("caret")
	if caret < 0 {
		return fmt.Errorf("--caret must be a 1-based line, got %d", caret)
	}
	opts := foldfmt.Options{Color: env.color}
	opts.Signatures, _ = cmd.Flags().GetBool("signatures")
	opts.Offsets, _ = cmd.Flags().GetBool("offsets")

	paths, err := absPaths(args)
	if err != nil {
		return err
	}
	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	var files []foldfmt.FileJSON
	for _, path := range paths {
		var v *editor.View
		err := measure("open "+path, func() error {
			var err error
			if caret > 0 {
				v, _, err = sess.OpenFileAt(cmd.Context(), path, caret-1)
			} else {
				v, _, err = sess.OpenFile(cmd.Context(), path)
			}
			return err
		})
		if err != nil {
			return err
		}
		env.locate(v.Document())
		rows := foldfmt.Rows(v)
		if asJSON {
			files = append(files, foldfmt.ToJSON(path, rows))
		} else if err := foldfmt.Text(cmd.OutOrStdout(), path, rows, opts); err != nil {
			return err
		}
		if _, err := sess.Close(v); err != nil {
			return err
		}
	}
	if asJSON {
		return foldfmt.JSON(cmd.OutOrStdout(), files...)
	}
	return nil
}

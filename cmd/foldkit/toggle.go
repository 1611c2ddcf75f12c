package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"foldkit/internal/foldfmt"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle [flags] <file.cy>",
	Short: "Expand or collapse the region starting on a line",
	Long: `Flip the region that starts on --line (1-based) and save the new state in
the session cache. All regions of the same group flip together. With --all
every region is collapsed or expanded instead`,
	Args: cobra.ExactArgs(1),
	RunE: runToggle,
}

func init() {
	toggleCmd.Flags().Int("line", 0, "1-based line the region starts on")
	toggleCmd.Flags().String("all", "", "collapse or expand every region (collapse|expand)")
	toggleCmd.MarkFlagsOneRequired("line", "all")
	toggleCmd.MarkFlagsMutuallyExclusive("line", "all")
}

func runToggle(cmd *cobra.Command, args []string) error {
	line, _ := cmd.Flags().GetInt("line")
	all, _ := cmd.Flags().GetString("all")
	switch {
	case all != "" && all != "collapse" && all != "expand":
		return fmt.Errorf("invalid --all value %q (expected collapse|expand)", all)
	case all == "" && line < 1:
		return fmt.Errorf("--line must be at least 1, got %d", line)
	}
	if env.noDisk {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: --no-session is set, the new state will not be kept")
	}
	paths, err := absPaths(args)
	if err != nil {
		return err
	}
	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	v, _, err := sess.OpenFile(cmd.Context(), paths[0])
	if err != nil {
		return err
	}
	env.locate(v.Document())
	if all != "" {
		n, err := sess.FoldAll(v, all == "collapse")
		if err != nil {
			sess.Discard(v)
			return err
		}
		if _, err := sess.Close(v); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d collapsed\n", paths[0], n)
		return nil
	}
	r, err := sess.Toggle(v, line-1)
	if err != nil {
		sess.Discard(v)
		return err
	}
	row := foldfmt.RowOf(v, r)
	if _, err := sess.Close(v); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), foldfmt.Line(row))
	return nil
}

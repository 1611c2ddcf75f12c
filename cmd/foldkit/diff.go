package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"foldkit/internal/foldfmt"
)

var diffCmd = &cobra.Command{
	Use:   "diff [flags] <old.cy> <new.cy>",
	Short: "Show how the regions of a file change under an edit",
	Long: `Open the old file, replace its text with the new one as a single edit and
reconcile, keeping the states of surviving regions. The two listings are
printed as a unified diff. The session cache is not touched`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().IntP("context", "U", 3, "lines of context")
}

func runDiff(cmd *cobra.Command, args []string) error {
	next, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	ctxLines, _ := cmd.Flags().GetInt("context")

	env.noDisk = true
	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	v, _, err := sess.OpenFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer sess.Discard(v)
	env.locate(v.Document())
	before := foldfmt.Rows(v)

	if err := v.Document().SetText(string(next)); err != nil {
		return err
	}
	st, err := sess.Refresh(cmd.Context(), v)
	if err != nil {
		return err
	}
	after := foldfmt.Rows(v)

	out, err := foldfmt.Diff(args[0], args[1], before, after, ctxLines)
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "regions unchanged")
	} else {
		fmt.Fprint(cmd.OutOrStdout(), out)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "kept %d, created %d, reused %d, removed %d\n", st.Kept, st.Created, st.Reused, st.Removed)
	return nil
}

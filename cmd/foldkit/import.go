package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"foldkit/internal/snapshot"
)

var importCmd = &cobra.Command{
	Use:   "import [flags] <file.cy> <state.xml>",
	Short: "Apply an exported folding state to a file",
	Long: `Read a state written by export and apply it to the file. Entries that no
longer match an element are skipped. The result is saved in the session cache`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	paths, err := absPaths(args[:1])
	if err != nil {
		return err
	}
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	snap, err := snapshot.Decode(f, env.cfg.Session.MaxEntries)
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}
	// состояние может быть снято с другого пути
	snap.Path = paths[0]

	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	v, _, err := sess.OpenFile(cmd.Context(), paths[0])
	if err != nil {
		return err
	}
	env.locate(v.Document())
	st, err := sess.Import(snap)
	if err != nil {
		sess.Discard(v)
		return err
	}
	if _, err := sess.Close(v); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d restored, %d created, %d skipped\n", paths[0], st.Restored, st.Created, st.Skipped)
	return nil
}

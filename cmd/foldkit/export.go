package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"foldkit/internal/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export [flags] <file.cy>",
	Short: "Write the folding state of a file as XML",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "write to a file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
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
	snap, err := sess.Close(v)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	n, err := snapshot.Encode(&buf, snap, env.cfg.Session.MaxEntries)
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d entries to %s\n", n, out)
	return nil
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"foldkit/internal/editor"
	"foldkit/internal/lsp"
	"foldkit/internal/version"
)

var lspCmd = &cobra.Command{
	Use:          "lsp",
	Short:        "Run the folding server over stdio",
	SilenceUsage: true,
	RunE:         runLSP,
}

func init() {
	lspCmd.Flags().Duration("debounce", 0, "delay before an edit is reconciled (0 = server default)")
	lspCmd.Flags().Bool("trace-lsp", false, "log requests to stderr")
}

func runLSP(cmd *cobra.Command, _ []string) error {
	debounce, _ := cmd.Flags().GetDuration("debounce")
	traceLSP, _ := cmd.Flags().GetBool("trace-lsp")

	if traceLSP {
		fmt.Fprintln(cmd.ErrOrStderr(), version.String())
	}
	loop := editor.NewLoop()
	sess, err := newSession(loop)
	if err != nil {
		return err
	}
	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Session:  sess,
		Loop:     loop,
		Debounce: debounce,
		Trace:    traceLSP,
	})
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}

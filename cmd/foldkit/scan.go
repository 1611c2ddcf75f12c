package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"foldkit/internal/driver"
)

var scanCmd = &cobra.Command{
	Use:   "scan [flags] <dir>",
	Short: "Fold every source under a directory with default states",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().Int("jobs", 0, "parallel files (0 = update.jobs from config, then GOMAXPROCS)")
	scanCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	scanCmd.Flags().Bool("quiet", false, "print only the summary")
}

func runScan(cmd *cobra.Command, args []string) error {
	modeStr, _ := cmd.Flags().GetString("ui")
	mode, err := parseProgressMode(modeStr)
	if err != nil {
		return err
	}
	quiet, _ := cmd.Flags().GetBool("quiet")
	jobs, _ := cmd.Flags().GetInt("jobs")
	if !cmd.Flags().Changed("jobs") {
		jobs = env.cfg.Update.Jobs
	}

	files, err := driver.ListFiles(args[0])
	if err != nil {
		return fmt.Errorf("scan %s: %w", args[0], err)
	}
	if len(files) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no %s files under %s\n", driver.Ext, args[0])
		return nil
	}

	// scan не трогает кэш сессии
	env.noDisk = true
	sess, err := newSession(nil)
	if err != nil {
		return err
	}

	var results []driver.ScanResult
	err = measure("scan", func() error {
		var err error
		if wantsProgress(mode, cmd.OutOrStdout(), len(files)) {
			results, err = runScanWithUI(cmd.Context(), sess, "scan "+args[0], files, jobs)
		} else {
			results, err = sess.Scan(cmd.Context(), files, jobs, nil)
		}
		return err
	})
	if err != nil {
		return err
	}
	failed := printScan(cmd.OutOrStdout(), results, quiet)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func printScan(w io.Writer, results []driver.ScanResult, quiet bool) (failed int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	var regions, collapsed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			if !quiet {
				fmt.Fprintf(tw, "%s\terror: %v\n", r.Path, r.Err)
			}
			continue
		}
		regions += r.Regions
		collapsed += r.Collapsed
		if !quiet {
			fmt.Fprintf(tw, "%s\t%d regions\t%d collapsed\n", r.Path, r.Regions, r.Collapsed)
		}
	}
	fmt.Fprintf(tw, "total\t%d regions\t%d collapsed\t%d files, %d failed\n", regions, collapsed, len(results), failed)
	tw.Flush()
	return failed
}

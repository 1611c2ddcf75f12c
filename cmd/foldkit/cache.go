package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"foldkit/internal/snapshot"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the session cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored folding state of every file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return clearCache(cmd.OutOrStdout(), env.cfg.Session.Dir)
	},
}

var cacheDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the session cache directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cache, err := snapshot.OpenDiskCache(env.cfg.Session.Dir, "foldkit")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), cache.Dir())
		return err
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheDirCmd)
}

// clearCache drops every record of the cache in dir.
func clearCache(w io.Writer, dir string) error {
	cache, err := snapshot.OpenDiskCache(dir, "foldkit")
	if err != nil {
		return err
	}
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("clear %s: %w", cache.Dir(), err)
	}
	_, err = fmt.Fprintf(w, "cleared %s\n", cache.Dir())
	return err
}

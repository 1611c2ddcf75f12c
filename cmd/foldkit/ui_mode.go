package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// progressMode is the --ui flag of foldkit scan: whether the per-file
// progress view is drawn while the tree is folded.
type progressMode string

const (
	progressAuto progressMode = "auto"
	progressOn   progressMode = "on"
	progressOff  progressMode = "off"
)

func parseProgressMode(value string) (progressMode, error) {
	switch m := progressMode(strings.TrimSpace(strings.ToLower(value))); m {
	case "":
		return progressAuto, nil
	case progressAuto, progressOn, progressOff:
		return m, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

// wantsProgress reports whether scan draws the progress view on out. In
// auto mode a single file is not worth a view, and out must be a terminal.
func wantsProgress(mode progressMode, out io.Writer, files int) bool {
	switch mode {
	case progressOn:
		return true
	case progressOff:
		return false
	}
	f, ok := out.(*os.File)
	return ok && files > 1 && isTerminal(f)
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"foldkit/internal/config"
	"foldkit/internal/diag"
	"foldkit/internal/driver"
	"foldkit/internal/editor"
	"foldkit/internal/observ"
	"foldkit/internal/source"
	"foldkit/internal/trace"
)

// cmdEnv is what every command shares: config, diagnostics and timings.
type cmdEnv struct {
	cfg      config.Config
	bag      *diag.Bag
	reporter diag.Reporter
	timer    *observ.Timer
	noDisk   bool
	color    bool
	cleanup  func()
	tracer   trace.Tracer

	mu       sync.Mutex
	locators map[string]diag.Locator
}

var env = &cmdEnv{cleanup: func() {}}

func setupCommand(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()
	if cmd.Context() == nil {
		cmd.SetContext(context.Background())
	}

	colorMode, _ := flags.GetString("color")
	switch strings.ToLower(colorMode) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorMode)
	}
	env.color = !color.NoColor

	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	env.cleanup = cleanup

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	env.cfg = cfg

	maxDiag, _ := flags.GetInt("max-diagnostics")
	env.bag = diag.NewBag(maxDiag)
	env.reporter = diag.NewDedupReporter(diag.BagReporter{Bag: env.bag})
	env.locators = make(map[string]diag.Locator)
	env.noDisk, _ = flags.GetBool("no-session")
	if on, _ := flags.GetBool("timings"); on {
		env.timer = observ.NewTimer()
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return config.Config{}, err
	}
	if flags.Changed("quick") {
		cfg.Folding.Quick, _ = flags.GetBool("quick")
	}
	if flags.Changed("validate-signatures") {
		cfg.Folding.ValidateSignatures, _ = flags.GetBool("validate-signatures")
	}
	return cfg, nil
}

// finishCommand prints timings and diagnostics collected by the command.
func finishCommand(cmd *cobra.Command, _ []string) {
	errOut := cmd.ErrOrStderr()
	if env.timer != nil {
		fmt.Fprint(errOut, env.timer.Summary())
	}
	if show, _ := cmd.Root().PersistentFlags().GetBool("show-diagnostics"); show && env.bag != nil && env.bag.Len() > 0 {
		env.bag.Dedup()
		env.bag.Sort()
		env.mu.Lock()
		out := diag.FormatShort(env.bag.Items(), env.locators)
		env.mu.Unlock()
		fmt.Fprintln(errOut, out)
	}
}

// newSession creates the session of a command. loop may be nil for
// commands that run everything on their own goroutine.
func newSession(loop *editor.Loop) (*driver.Session, error) {
	return driver.NewSession(driver.Options{
		Config:   env.cfg,
		Loop:     loop,
		Reporter: env.reporter,
		Memory:   env.noDisk,
	})
}

// locate lets diagnostics of d print line and column.
func (e *cmdEnv) locate(d *source.Document) {
	e.mu.Lock()
	e.locators[d.Path()] = d
	e.mu.Unlock()
}

// measure times fn as phase name when --timings is on.
func measure(name string, fn func() error) error {
	if env.timer == nil {
		return fn()
	}
	return env.timer.Measure(name, fn)
}

// absPaths makes file arguments absolute so the session cache keys them
// the same from every working directory.
func absPaths(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		p, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", a, err)
		}
		out[i] = p
	}
	return out, nil
}

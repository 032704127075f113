package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/breadboard-sim/breadboard/core/command"
	"github.com/breadboard-sim/breadboard/runtime/engine"
)

type runOptions struct {
	configPath  string
	answersPath string
	maxLoops    int64
	maxDepth    int
	verbose     bool
	delay       time.Duration
	watch       bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <sketch.bast>",
		Short: "Execute a compiled sketch and print its command stream",
		Long: `run decodes a binary sketch file and executes it, printing every
command the engine emits as one JSON line on stdout. Value requests
(digitalRead, analogRead, millis, micros, pulseIn) are answered from
the --answers script, or with zero when no script is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSketchCmd(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (default breadboard.yaml when present)")
	cmd.Flags().StringVarP(&opts.answersPath, "answers", "a", "", "JSON answer script for value requests")
	cmd.Flags().Int64Var(&opts.maxLoops, "max-loops", 0, "loop() iteration ceiling (0 = unbounded)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "call depth ceiling (0 = default)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "record and print debug events")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "pacing delay between printed commands")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-run when the sketch file changes")
	return cmd
}

func runSketchCmd(cmd *cobra.Command, path string, opts *runOptions) error {
	fileCfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	cfg := fileCfg.engineConfig()
	flags := cmd.Flags()
	if flags.Changed("max-loops") {
		cfg.MaxLoopIterations = opts.maxLoops
	}
	if flags.Changed("max-depth") {
		cfg.MaxCallDepth = opts.maxDepth
	}
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if flags.Changed("delay") {
		cfg.StepDelay = opts.delay
	}

	answersPath := fileCfg.Answers
	if flags.Changed("answers") {
		answersPath = opts.answersPath
	}

	if !opts.watch {
		return runOnce(path, answersPath, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
	return watchAndRun(path, answersPath, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// runOnce executes the sketch file to completion. Each answer script
// run starts from its first entry.
func runOnce(path, answersPath string, cfg engine.Config, out, errOut io.Writer) error {
	script, err := loadAnswers(answersPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	eng, err := engine.NewFromBytes(data, nil, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	enc := json.NewEncoder(out)
	var (
		finished  = make(chan struct{})
		finish    sync.Once
		runErr    error
		scriptErr error
	)
	eng.OnCommand(func(c command.Command) {
		if err := enc.Encode(c); err != nil {
			scriptErr = err
			_ = eng.Stop()
			return
		}
		if cfg.StepDelay > 0 {
			time.Sleep(cfg.StepDelay)
		}
		switch {
		case c.Type == command.TypeError:
			// Emitted before the ERROR transition, so it is ordered
			// ahead of the finished channel.
			runErr = fmt.Errorf("sketch failed: %s", c.StrField("message"))
		case c.IsRequest():
			v, err := script.Next(c)
			if err != nil {
				scriptErr = err
				_ = eng.Stop()
				return
			}
			eng.ResumeWithValue(c.RequestID, v)
		}
	})
	eng.OnStateChange(func(_, to engine.State) {
		switch to {
		case engine.StateComplete, engine.StateError, engine.StateIdle:
			finish.Do(func() { close(finished) })
		}
	})

	if err := eng.Start(); err != nil {
		return err
	}
	<-finished

	if cfg.Verbose {
		for _, ev := range eng.DebugEvents() {
			fmt.Fprintf(errOut, "%s %s %s\n", ev.Timestamp.Format(time.RFC3339Nano), ev.Event, ev.Detail)
		}
	}
	if scriptErr != nil {
		return scriptErr
	}
	return runErr
}

// watchAndRun executes the sketch, then re-executes it whenever the
// file is written. Runs forever until interrupted.
func watchAndRun(path, answersPath string, cfg engine.Config, out, errOut io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files rather than write in
	// place, which drops a watch on the file itself.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	for {
		if err := runOnce(path, answersPath, cfg, out, errOut); err != nil {
			fmt.Fprintln(errOut, "Error:", err)
		}
		fmt.Fprintf(errOut, "watching %s\n", path)

		for changed := false; !changed; {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if sameFile(ev.Name, abs) && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					changed = true
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintln(errOut, "watch:", err)
			}
		}
		// Let the writer finish before re-reading.
		time.Sleep(50 * time.Millisecond)
	}
}

func sameFile(a, b string) bool {
	aa, err := filepath.Abs(a)
	if err != nil {
		return false
	}
	return aa == b
}

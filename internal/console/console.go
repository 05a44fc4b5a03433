// Package console implements the interactive operator REPL for
// cmd/pwned-mirror, adapted from the teacher's cmd/sloty shell: the same
// peterh/liner-backed prompt and history discipline, repurposed from
// slotcache inspection to Mirror Engine revision inspection and control.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/calvinalkan/pwnedmirror/internal/engine"
)

// REPL is the interactive command loop driving one Engine.
type REPL struct {
	eng *engine.Engine
	out io.Writer

	liner *liner.State
}

// New constructs a REPL over eng, writing output to out.
func New(eng *engine.Engine, out io.Writer) *REPL {
	return &REPL{eng: eng, out: out}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".pwned_mirror_history")
}

var commandNames = []string{"status", "update", "watch", "help", "quit", "exit"}

func (r *REPL) completer(line string) []string {
	var out []string
	for _, name := range commandNames {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	return out
}

// Run starts the REPL loop, blocking until the operator quits or ctx is
// cancelled.
func (r *REPL) Run(ctx context.Context) error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintln(r.out, "pwned-mirror console")
	fmt.Fprintln(r.out, "Type 'help' for available commands.")
	fmt.Fprintln(r.out)

	for {
		if ctx.Err() != nil {
			r.saveHistory()
			return ctx.Err()
		}

		line, err := r.liner.Prompt("pwned-mirror> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(r.out, "\nBye!")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Fprintln(r.out, "Bye!")
			r.saveHistory()
			return nil

		case "help", "?":
			r.printHelp()

		case "status":
			r.cmdStatus()

		case "update":
			r.cmdUpdate(ctx)

		case "watch":
			r.cmdWatch(ctx, args)

		default:
			fmt.Fprintf(r.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *REPL) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}

	if f, err := os.Create(path); err == nil {
		r.liner.WriteHistory(f)
		f.Close()
	}
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  status           Show the current revision state")
	fmt.Fprintln(r.out, "  update           Start a mirror update")
	fmt.Fprintln(r.out, "  watch [seconds]  Poll status until the update reaches a terminal state")
	fmt.Fprintln(r.out, "  quit             Exit the console")
}

func (r *REPL) cmdStatus() {
	snap := r.eng.Revision()
	fmt.Fprintf(r.out, "status: %s\n", snap.Status)
	if snap.Progress != nil {
		fmt.Fprintf(r.out, "progress: %d%%\n", *snap.Progress)
	}
	if snap.Err != nil {
		fmt.Fprintf(r.out, "error: %v\n", snap.Err)
	}
}

func (r *REPL) cmdUpdate(ctx context.Context) {
	result, err := r.eng.Update(ctx)
	if err != nil {
		fmt.Fprintf(r.out, "update error: %v\n", err)
		return
	}

	fmt.Fprintf(r.out, "update result: %s\n", result)
}

func (r *REPL) cmdWatch(ctx context.Context, args []string) {
	interval := time.Second
	if len(args) > 0 {
		if seconds, err := time.ParseDuration(args[0] + "s"); err == nil {
			interval = seconds
		}
	}

	for {
		snap := r.eng.Revision()
		fmt.Fprintf(r.out, "status: %s\n", snap.Status)

		if snap.IsIdle() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

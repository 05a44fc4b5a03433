// Command pwned-mirror is the devops CLI for driving the Mirror Engine:
// running one-shot updates, an interactive console, or a cron-scheduled
// background mirror.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/calvinalkan/pwnedmirror/internal/clix"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	os.Exit(run(os.Stdout, os.Stderr, os.Args[1:], env, sigCh))
}

func run(out, errOut *os.File, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	o := clix.NewIO(out, errOut)
	commands := allCommands(env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)

	go func() {
		done <- clix.Dispatch(ctx, o, "pwned-mirror", commands, args)
	}()

	select {
	case code := <-done:
		return code
	case <-sigCh:
		o.ErrPrintln("shutting down...")
		cancel()
	}

	select {
	case <-done:
		return 130
	case <-time.After(5 * time.Second):
		o.ErrPrintln("graceful shutdown timed out, forced exit")
		return 130
	}
}

// Command pwned-server runs the Reader HTTP surface: GET /range/{prefix}
// against the Mirror Engine's currently active dataset. It does not run
// updates itself. The active dataset is read from the resource directory's
// control file once, at startup; a dataset swapped in afterwards by another
// process (such as "pwned-mirror update" or "pwned-mirror serve-cron") is
// not picked up while the server keeps running.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/pwnedmirror/internal/config"
	"github.com/calvinalkan/pwnedmirror/internal/engine"
	"github.com/calvinalkan/pwnedmirror/internal/httpapi"
	"github.com/calvinalkan/pwnedmirror/internal/obs"
	"github.com/calvinalkan/pwnedmirror/internal/provider"
	"github.com/calvinalkan/pwnedmirror/pkg/fs"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("pwned-server", flag.ContinueOnError)
	resourceDir := fs.String("resource-dir", "", "Directory holding the mirrored datasets")
	listenAddr := fs.String("listen", ":8080", "HTTP listen `address`")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	env := environMap()

	cfg, err := config.Load(env, config.Overrides{ResourceDir: *resourceDir})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: loading config:", err)
		return 1
	}

	logger, err := obs.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: setting up logger:", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	eng, err := engine.New(cfg, provider.NewUpstream(cfg.UpstreamBaseURL), fsReal(), logger)
	if err != nil {
		logger.Error("constructing engine", zap.Error(err))
		return 1
	}

	srv := &http.Server{
		Addr:    *listenAddr,
		Handler: httpapi.New(eng, logger),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	logger.Info("pwned-server listening", zap.String("addr", *listenAddr))

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", zap.Error(err))
			return 1
		}
	case <-sigCh:
		logger.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	return 0
}

func environMap() map[string]string {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	return env
}

func fsReal() fs.FS {
	return fs.NewReal()
}

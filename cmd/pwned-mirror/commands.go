package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/pwnedmirror/internal/clix"
	"github.com/calvinalkan/pwnedmirror/internal/config"
	"github.com/calvinalkan/pwnedmirror/internal/console"
	"github.com/calvinalkan/pwnedmirror/internal/engine"
	"github.com/calvinalkan/pwnedmirror/internal/obs"
	"github.com/calvinalkan/pwnedmirror/internal/plock"
	"github.com/calvinalkan/pwnedmirror/pkg/fs"
)

func allCommands(env map[string]string) []*clix.Command {
	return []*clix.Command{
		updateCmd(env),
		consoleCmd(env),
		serveCronCmd(env),
	}
}

// setupEngine loads config, acquires the resource directory's process
// lock, and wires up the Range Provider and Engine. The returned cleanup
// must be called (in order: cleanup before lock release is irrelevant
// since both are deferred by the caller) once the engine is no longer
// needed.
func setupEngine(ctx context.Context, env map[string]string, f *engineFlags, logger *zap.Logger) (*engine.Engine, func(), error) {
	cfg, err := config.Load(env, f.overrides())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	lock := plock.New(cfg.ResourceDir, fs.NewReal())

	held, err := lock.TryAcquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	prov, closeProvider, err := buildProvider(cfg)
	if err != nil {
		_ = held.Close()
		return nil, nil, err
	}

	eng, err := engine.New(cfg, prov, fs.NewReal(), logger)
	if err != nil {
		_ = closeProvider()
		_ = held.Close()
		return nil, nil, fmt.Errorf("constructing engine: %w", err)
	}

	cleanup := func() {
		_ = closeProvider()
		_ = held.Close()
	}

	return eng, cleanup, nil
}

func updateCmd(env map[string]string) *clix.Command {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	f := bindEngineFlags(fs)

	return &clix.Command{
		Flags: fs,
		Usage: "update [flags]",
		Short: "run one mirror update and exit",
		Exec: func(ctx context.Context, o *clix.IO, _ []string) error {
			logger, err := obs.NewLogger()
			if err != nil {
				return fmt.Errorf("setting up logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			eng, cleanup, err := setupEngine(ctx, env, f, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := eng.Update(ctx)
			if err != nil {
				return err
			}

			o.Println("result:", result)

			return nil
		},
	}
}

func consoleCmd(env map[string]string) *clix.Command {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	f := bindEngineFlags(fs)

	return &clix.Command{
		Flags: fs,
		Usage: "console [flags]",
		Short: "open an interactive operator console",
		Exec: func(ctx context.Context, o *clix.IO, _ []string) error {
			logger, err := obs.NewLogger()
			if err != nil {
				return fmt.Errorf("setting up logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			eng, cleanup, err := setupEngine(ctx, env, f, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			return console.New(eng, os.Stdout).Run(ctx)
		},
	}
}

func serveCronCmd(env map[string]string) *clix.Command {
	fs := flag.NewFlagSet("serve-cron", flag.ContinueOnError)
	f := bindEngineFlags(fs)
	schedule := fs.String("schedule", "@hourly", "Cron `schedule` on which to run Engine.Update")

	return &clix.Command{
		Flags: fs,
		Usage: "serve-cron [flags]",
		Short: "run Engine.Update on a cron schedule until stopped",
		Exec: func(ctx context.Context, o *clix.IO, _ []string) error {
			logger, err := obs.NewLogger()
			if err != nil {
				return fmt.Errorf("setting up logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			eng, cleanup, err := setupEngine(ctx, env, f, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			c := cron.New()

			_, err = c.AddFunc(*schedule, func() {
				runCtx, cancel := context.WithTimeout(ctx, time.Hour)
				defer cancel()

				result, err := eng.Update(runCtx)
				if err != nil {
					logger.Error("scheduled mirror update failed", zap.Error(err))
					return
				}

				if result == engine.Irrelevant {
					logger.Debug("scheduled mirror update skipped, another update already in flight")
					return
				}

				logger.Info("scheduled mirror update finished", zap.String("result", result.String()))
			})
			if err != nil {
				return fmt.Errorf("scheduling update: %w", err)
			}

			o.Println("running on schedule", *schedule)

			c.Start()
			defer c.Stop()

			<-ctx.Done()

			return nil
		},
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionDeleteBatch = 500

type clearSessionsOptions struct {
	Timeout time.Duration
	DryRun  bool
	Yes     bool
	Prefix  string
}

type sessionDeleteStats struct {
	total    int64
	deleted  int64
	failures int
}

func runClearSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearSessionsFlags(args, cmdCtx.Config.Redis.SessionPrefix)
	if err != nil {
		return err
	}
	if !hasRedisConfig(&cmdCtx.Config.Redis) {
		return errors.New("redis is not configured; set REDIS_URI or sentinel/cluster settings")
	}
	if confirmErr := cmdCtx.confirmAction(clearSessionsConfirmOptions{opts: opts}, "delete persisted sessions"); confirmErr != nil {
		return confirmErr
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	_, client, err := connectInfraWithOptions(&connectInfraOptions{
		Ctx:       ctx,
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantRedis: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeInfra(nil, client); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	stats, err := deleteSessions(ctx, cmdCtx, client, opts)
	if err != nil {
		return err
	}
	if opts.DryRun {
		return writef(cmdCtx.Out, "Dry run: %d session(s) would be deleted.\n", stats.total)
	}
	if err := writef(cmdCtx.Out, "Deleted %d of %d session(s).\n", stats.deleted, stats.total); err != nil {
		return err
	}
	if stats.failures > 0 {
		return fmt.Errorf("%d delete batch(es) failed", stats.failures)
	}
	return nil
}

func deleteSessions(
	ctx context.Context,
	cmdCtx *commandContext,
	client redis.UniversalClient,
	opts clearSessionsOptions,
) (sessionDeleteStats, error) {
	var stats sessionDeleteStats
	pattern := opts.Prefix + "*"
	cmdCtx.Logger.Info("scanning redis", "pattern", pattern, "dry_run", opts.DryRun)

	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, sessionDeleteBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if opts.DryRun {
			batch = batch[:0]
			return
		}
		n, delErr := client.Del(ctx, batch...).Result()
		if delErr != nil {
			stats.failures++
			cmdCtx.Logger.Error("failed to delete sessions", "count", len(batch), "error", delErr)
		} else {
			stats.deleted += n
		}
		batch = batch[:0]
	}

	for iter.Next(ctx) {
		stats.total++
		batch = append(batch, iter.Val())
		if len(batch) == sessionDeleteBatch {
			flush()
		}
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("redis scan: %w", err)
	}
	flush()
	return stats, nil
}

func parseClearSessionsFlags(args []string, defaultPrefix string) (clearSessionsOptions, error) {
	fs := flag.NewFlagSet("clear-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := clearSessionsOptions{Timeout: defaultQueryTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultQueryTimeout, "Maximum duration to wait for the scan")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Count matching sessions without deleting them")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	fs.StringVar(&opts.Prefix, "prefix", defaultPrefix, "Redis key prefix of persisted sessions")

	if err := fs.Parse(args); err != nil {
		return clearSessionsOptions{}, err
	}
	if opts.Timeout <= 0 {
		return clearSessionsOptions{}, errors.New("--timeout must be greater than zero")
	}
	// an empty prefix would match the whole keyspace
	if strings.TrimSpace(opts.Prefix) == "" {
		return clearSessionsOptions{}, errors.New("--prefix must not be empty")
	}
	return opts, nil
}

type clearSessionsConfirmOptions struct {
	opts clearSessionsOptions
}

func (c clearSessionsConfirmOptions) IsDryRun() bool { return c.opts.DryRun }
func (c clearSessionsConfirmOptions) IsYes() bool    { return c.opts.Yes }
func (c clearSessionsConfirmOptions) GetWarning() string {
	return "WARNING: every signed-in browser will be signed out."
}

func (c clearSessionsConfirmOptions) GetTarget() string {
	return fmt.Sprintf("keys matching %q", c.opts.Prefix+"*")
}

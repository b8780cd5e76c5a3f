package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"collate/internal/cli"
	"collate/internal/cluster"
	"collate/internal/config"
	"collate/internal/db"
	"collate/internal/logging"
	"collate/internal/projlock"
)

func runDedup(args []string) int {
	fs := flag.NewFlagSet("dedup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	projectUUID := fs.String("project", "", "Project UUID")
	strategyUUID := fs.String("strategy", "", "Match strategy UUID to cluster under")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*projectUUID) == "" || strings.TrimSpace(*strategyUUID) == "" {
		fmt.Fprintln(os.Stderr, "--project and --strategy are required")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	project, err := pool.GetProjectByUUID(ctx, strings.TrimSpace(*projectUUID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Project not found: %v\n", err)
		return 1
	}
	strategy, err := pool.GetMatchStrategyByUUID(ctx, project.ProjectID, strings.TrimSpace(*strategyUUID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Strategy not found: %v\n", err)
		return 1
	}

	svc := cluster.NewService(pool, logger)
	job, err := svc.RunSync(ctx, project, strategy)
	if err != nil {
		if errors.Is(err, projlock.ErrProjectLocked) {
			fmt.Fprintln(os.Stderr, "Project is locked by another job, try again later")
			return 1
		}
		fmt.Fprintf(os.Stderr, "Clustering failed: %v\n", err)
		return 1
	}

	fmt.Printf("job_uuid=%s status=%s\n", job.JobUUID, job.Status)
	if job.Status == db.JobStatusCompleted {
		fmt.Printf("records_before=%d records_after=%d merges=%d created=%d deleted=%d\n",
			derefInt(job.RecordsBefore), derefInt(job.RecordsAfter), derefInt(job.Merges),
			derefInt(job.ClustersCreated), derefInt(job.ClustersDeleted))
		return 0
	}
	if job.ErrorMessage != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", *job.ErrorMessage)
	}
	return 1
}

func derefInt(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

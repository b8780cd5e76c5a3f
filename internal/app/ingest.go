package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"collate/internal/cli"
	"collate/internal/config"
	"collate/internal/db"
	"collate/internal/ingest"
	"collate/internal/logging"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	projectUUID := fs.String("project", "", "Project UUID")
	sourceUUID := fs.String("source", "", "Source UUID within the project")
	payload := fs.String("payload", "", "Bibliographic record payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to payload JSON file (overrides --payload)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*projectUUID) == "" || strings.TrimSpace(*sourceUUID) == "" {
		fmt.Fprintln(os.Stderr, "--project and --source are required")
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

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
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
	source, err := pool.GetSourceByUUID(ctx, project.ProjectID, strings.TrimSpace(*sourceUUID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Source not found: %v\n", err)
		return 1
	}

	svc := ingest.NewService(pool, logger)
	result, err := svc.Ingest(ctx, project, source, payloadJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	fmt.Printf("source_item_uuid=%s canonical_uuid=%s attached=%t basis=%s\n",
		result.SourceItemUUID, result.CanonicalUUID, result.Attached, result.MatchBasis)
	if result.MatchKey != nil {
		fmt.Printf("match_key=%s\n", *result.MatchKey)
	}

	return 0
}

func loadJSONInput(inlineValue, filePath, label string) (json.RawMessage, error) {
	if path := strings.TrimSpace(filePath); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s file %q: %w", label, path, err)
		}
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "" {
			return nil, fmt.Errorf("%s file %q is empty", label, path)
		}
		return json.RawMessage(trimmed), nil
	}

	trimmed := strings.TrimSpace(inlineValue)
	if trimmed == "" {
		return nil, fmt.Errorf("%s JSON is empty", label)
	}
	return json.RawMessage(trimmed), nil
}

// Command sous-admin is the operator CLI: schema management, development
// seeding, and job queue inspection (stats, dead letters, requeue).
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sous-os/sous-core/config"
	"github.com/sous-os/sous-core/internal/bootstrap"
	"github.com/sous-os/sous-core/internal/data"
	"github.com/sous-os/sous-core/internal/devseed"
	"github.com/sous-os/sous-core/internal/domain/model"
	"github.com/sous-os/sous-core/internal/service"
	"github.com/sous-os/sous-core/internal/util"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultCommandTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"db-reset": {
			name:        "db-reset",
			description: "Drop the database schema, run migrations, and optionally seed data",
			run:         runDBReset,
		},
		"db-seed": {
			name:        "db-seed",
			description: "Run database migrations and seed development data",
			run:         runDBSeed,
		},
		"queue-stats": {
			name:        "queue-stats",
			description: "Show per-state job counts for every queue",
			run:         runQueueStats,
		},
		"dead-letters": {
			name:        "dead-letters",
			description: "List the most recently dead-lettered jobs on a queue",
			run:         runDeadLetters,
		},
		"requeue": {
			name:        "requeue",
			description: "Return a dead-lettered job to its queue with a fresh attempt budget",
			run:         runRequeue,
		},
		"job-status": {
			name:        "job-status",
			description: "Show the status of a job by id",
			run:         runJobStatus,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: sous-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(os.Stdout, "  %-16s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

// withDatabase connects, runs fn under a timeout, and closes the connection.
func withDatabase(cmdCtx *commandContext, timeout time.Duration, fn func(context.Context, *sql.DB) error) error {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Error("close database failed", "error", cerr)
		}
	}()

	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, timeout)
	defer cancel()

	return fn(ctx, db)
}

func newJobService(db *sql.DB, logger *slog.Logger) *service.JobService {
	return service.MustNewJobService(service.JobServiceOptions{
		Repo:         data.NewJobRepo(db, data.RepoConfig{Logger: logger}),
		DefaultLease: 30 * time.Second,
		Logger:       logger,
	})
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultCommandTimeout, "command timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withDatabase(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		return bootstrap.RunMigrations(ctx, db, cmdCtx.Logger)
	})
}

func runDBReset(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("db-reset", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip confirmation prompt")
	seed := fs.Bool("seed", false, "seed development data after reset")
	timeout := fs.Duration("timeout", defaultCommandTimeout, "command timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target := fmt.Sprintf(
		"database %q on %s:%d",
		cmdCtx.Config.Postgres.Name,
		cmdCtx.Config.Postgres.Host,
		cmdCtx.Config.Postgres.Port,
	)
	if err := confirmAction(*yes, "drop and recreate the public schema of "+target); err != nil {
		return err
	}

	return withDatabase(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("dropping public schema", "database", cmdCtx.Config.Postgres.Name)
		if _, err := db.ExecContext(ctx, "DROP SCHEMA public CASCADE"); err != nil {
			return fmt.Errorf("drop schema: %w", err)
		}
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA public"); err != nil {
			return fmt.Errorf("recreate schema: %w", err)
		}

		cmdCtx.Logger.Info("re-running database migrations")
		if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		if *seed {
			cmdCtx.Logger.Info("seeding development data after reset")
			if err := devseed.Run(ctx, db, cmdCtx.Logger); err != nil {
				return fmt.Errorf("seed data: %w", err)
			}
		}

		cmdCtx.Logger.Info("database reset completed successfully")
		return nil
	})
}

func runDBSeed(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("db-seed", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultCommandTimeout, "command timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withDatabase(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		return devseed.Run(ctx, db, cmdCtx.Logger)
	})
}

func runQueueStats(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("queue-stats", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultCommandTimeout, "command timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withDatabase(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		jobs := newJobService(db, cmdCtx.Logger)
		defer jobs.StopAllListeners()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if err := writef(w, "QUEUE\tPENDING\tLEASED\tCOMPLETED\tFAILED\tDEAD\n"); err != nil {
			return err
		}
		for _, queue := range []model.QueueName{
			model.QueueIngestion,
			model.QueueIntelligence,
			model.QueueSales,
			model.QueueSupport,
		} {
			stats, err := jobs.Stats(ctx, queue)
			if err != nil {
				return fmt.Errorf("stats for %s: %w", queue, err)
			}
			if err := writef(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
				queue, stats.Pending, stats.Leased, stats.Completed,
				stats.Failed, stats.DeadLettered); err != nil {
				return err
			}
		}
		return w.Flush()
	})
}

func runDeadLetters(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("dead-letters", flag.ContinueOnError)
	queueName := fs.String("queue", "", "queue to inspect (required)")
	limit := fs.Int("limit", 20, "maximum jobs to list")
	timeout := fs.Duration("timeout", defaultCommandTimeout, "command timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	queue := model.QueueName(*queueName)
	if !queue.Valid() {
		return fmt.Errorf("invalid or missing queue %q", *queueName)
	}

	return withDatabase(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		jobs := newJobService(db, cmdCtx.Logger)
		defer jobs.StopAllListeners()

		deadLettered, err := jobs.ListDeadLettered(ctx, queue, *limit)
		if err != nil {
			return fmt.Errorf("list dead letters: %w", err)
		}
		if len(deadLettered) == 0 {
			return writef(os.Stdout, "no dead-lettered jobs on queue %s\n", queue)
		}

		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if err := writef(w, "ID\tKIND\tORG\tATTEMPTS\tAGE\tLAST ERROR\n"); err != nil {
			return err
		}
		for _, job := range deadLettered {
			lastError := ""
			if job.LastError != nil {
				lastError = truncate(*job.LastError, 60)
			}
			age := util.FormatAge(job.UpdatedAt, now)
			if err := writef(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
				job.ID, job.Kind, job.OrganizationID,
				job.Attempts, job.MaxAttempts, age, lastError); err != nil {
				return err
			}
		}
		return w.Flush()
	})
}

func runRequeue(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("requeue", flag.ContinueOnError)
	jobID := fs.String("id", "", "dead-lettered job id (required)")
	timeout := fs.Duration("timeout", defaultCommandTimeout, "command timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*jobID) == "" {
		return errors.New("flag -id is required")
	}

	return withDatabase(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		jobs := newJobService(db, cmdCtx.Logger)
		defer jobs.StopAllListeners()

		job, err := jobs.Requeue(ctx, *jobID)
		if err != nil {
			return fmt.Errorf("requeue job: %w", err)
		}
		return writef(os.Stdout, "job %s requeued on %s (attempts reset, max %d)\n",
			job.ID, job.Queue, job.MaxAttempts)
	})
}

func runJobStatus(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("job-status", flag.ContinueOnError)
	jobID := fs.String("id", "", "job id (required)")
	timeout := fs.Duration("timeout", defaultCommandTimeout, "command timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*jobID) == "" {
		return errors.New("flag -id is required")
	}

	return withDatabase(cmdCtx, *timeout, func(ctx context.Context, db *sql.DB) error {
		jobs := newJobService(db, cmdCtx.Logger)
		defer jobs.StopAllListeners()

		status, err := jobs.GetStatus(ctx, *jobID)
		if err != nil {
			return fmt.Errorf("get job status: %w", err)
		}

		if err := writef(os.Stdout, "status: %s\nattempts: %d\n", status.Status, status.Attempts); err != nil {
			return err
		}
		if status.CompletedAt != nil {
			if err := writef(os.Stdout, "completed_at: %s\n", status.CompletedAt.Format(time.RFC3339)); err != nil {
				return err
			}
		}
		if status.LastError != nil {
			if err := writef(os.Stdout, "last_error: %s\n", *status.LastError); err != nil {
				return err
			}
		}
		return nil
	})
}

func confirmAction(yes bool, action string) error {
	if yes {
		return nil
	}
	if err := writef(os.Stdout, "About to %s. Type 'yes' to continue: ", action); err != nil {
		return err
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimSpace(line) != "yes" {
		return errors.New("aborted")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Command crmctl выполняет разовые операции CRM: заполнение базы и ручной запуск задач.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/crm/internal/app"
	"github.com/vladislavdragonenkov/crm/internal/jobs"
	"github.com/vladislavdragonenkov/crm/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/crm/internal/version"
)

type configLoader func() (app.Config, error)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(func() (app.Config, error) {
		return app.LoadConfig(log.WithField("component", "config"))
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(load configLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Administrative commands for the CRM service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSeedCmd(load), newJobCmd(load), newDLQCmd(load), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func newSeedCmd(load configLoader) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate storage with demo customers, products and orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := openDependencies(cmd.Context(), load)
			if err != nil {
				return err
			}
			defer deps.Close()

			result, err := app.Seed(cmd.Context(), deps.Service, deps.Resetter, reset, deps.Logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Skipped {
				fmt.Fprintln(out, "Storage already contains customers, nothing to do (use --reset to recreate).")
				return nil
			}
			fmt.Fprintf(out, "Seeded %d customers, %d products, %d orders.\n", result.Customers, result.Products, result.Orders)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "delete existing data before seeding")
	return cmd
}

func newJobCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:       "job <heartbeat|low-stock|report|reminders>",
		Short:     "Run one periodic job immediately",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{jobs.JobHeartbeat, jobs.JobLowStock, jobs.JobReport, jobs.JobReminders},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := openDependencies(ctx, load)
			if err != nil {
				return err
			}
			defer deps.Close()

			var prober jobs.Prober
			if args[0] == jobs.JobHeartbeat {
				conn, p, err := app.DialHealth(deps.Config.GRPCAddr)
				if err != nil {
					return err
				}
				defer conn.Close()
				prober = p
			}

			job, err := deps.Job(args[0], prober)
			if err != nil {
				return err
			}
			if err := deps.Runner().Run(ctx, job); err != nil {
				return fmt.Errorf("job %s: %w", job.Name(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s finished.\n", job.Name())
			return nil
		},
	}
}

// replayerFactory подключается к Kafka; подменяется в тестах.
var replayerFactory = func(brokers []string, execute bool) (*kafka.Replayer, func() error, error) {
	return kafka.DialReplayer(brokers, execute, log.WithField("component", "dlq-replay"))
}

func newDLQCmd(load configLoader) *cobra.Command {
	dlq := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered CRM events",
	}

	var opts kafka.ReplayConfig
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Republish events from the dead-letter topic (dry-run unless --execute)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			brokers := cfg.Brokers()
			if len(brokers) == 0 {
				return fmt.Errorf("kafka brokers are required (KAFKA_BROKERS)")
			}
			if opts.SourceTopic == "" {
				opts.SourceTopic = cfg.KafkaDeadLetterTopic
			}
			if opts.TargetTopic == "" {
				opts.TargetTopic = cfg.KafkaTopic
			}

			replayer, closeFn, err := replayerFactory(brokers, opts.Execute)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			stats, err := replayer.Run(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("dlq replay failed: %w", err)
			}
			mode := "dry-run"
			if opts.Execute {
				mode = "execute"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DLQ replay (%s): processed=%d replayed=%d skipped=%d\n",
				mode, stats.Processed, stats.Replayed, stats.Skipped)
			return nil
		},
	}
	flags := replay.Flags()
	flags.StringVar(&opts.SourceTopic, "source-topic", "", "dead-letter topic (default from config)")
	flags.StringVar(&opts.TargetTopic, "target-topic", "", "topic to republish to (default from config)")
	flags.IntVar(&opts.Limit, "limit", 100, "max number of messages to scan")
	flags.BoolVar(&opts.Execute, "execute", false, "publish events; default is dry-run")
	flags.BoolVar(&opts.FromNewest, "from-newest", false, "scan the latest messages of each partition")
	flags.DurationVar(&opts.IdleTimeout, "idle-timeout", 2*time.Second, "stop reading a partition after this idle period")

	dlq.AddCommand(replay)
	return dlq
}

func openDependencies(ctx context.Context, load configLoader) (*app.Dependencies, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return app.NewDependencies(ctx, cfg, log.WithField("component", "crmctl"))
}

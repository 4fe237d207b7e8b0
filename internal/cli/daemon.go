package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/config"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/workflow"
	"github.com/go-co-op/gocron-ui/server"
	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	passSchedule string
	bindAddress  string
)

var daemonCommand = &cobra.Command{
	Use:     "daemon",
	Short:   "Run Shutter in daemon mode",
	GroupID: "shutter",
	Long:    `Starts Shutter as a background service that executes snapshot lifecycle passes on a cron schedule and serves the scheduler dashboard plus Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		banner := fmt.Sprintf("Shutter - Daemon Mode \n\nVersion: %s\nBuild Date: %s", ShutterVersion, ShutterDate)
		fmt.Println(headerStyle.Render(banner))

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		dlog := workflow.SetupLogger(logLevel, cfg.DefaultAWSProfile).With("component", "daemon")

		s, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		s.Start()
		dlog.Info("Scheduler started", "config", configPath)

		// Declared before the task closure so the job can report its own
		// next run after each execution.
		var passJob gocron.Job

		passJob, passJobError := s.NewJob(
			gocron.CronJob(
				passSchedule,
				false,
			),
			gocron.NewTask(func() {
				if err := workflow.RunPass(configPath, timeout, logLevel, time.Time{}); err != nil {
					dlog.Error("Snapshot pass finished with errors", "error", err)
				}

				if passJob != nil {
					if nextRun, err := passJob.NextRun(); err == nil {
						dlog.Info("Snapshot pass completed",
							"next_run", nextRun.Format(time.RFC3339),
							"job_id", passJob.ID())
					}
				}
			}),
			gocron.WithName("Snapshot Lifecycle Pass"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if passJobError != nil {
			return passJobError
		}

		if nextRun, err := passJob.NextRun(); err == nil {
			dlog.Info("Job Scheduled",
				"job_name", passJob.Name(),
				"job_id", passJob.ID(),
				"schedule", passSchedule,
				"next_run", nextRun.Format(time.RFC3339))
		}

		srv := server.NewServer(s, 8080, server.WithTitle("Shutter - Dashboard"))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/", srv.Router)
		dlog.Info("Shutter scheduler UI started", "address", bindAddress)

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- http.ListenAndServe(bindAddress, mux)
		}()

		// Block until a shutdown signal arrives or the server dies.
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serveErr:
			dlog.Error("UI server stopped", "error", err)
			if shutdownErr := s.Shutdown(); shutdownErr != nil {
				return shutdownErr
			}
			return err
		case <-sigChan:
			dlog.Warn("Shutting down scheduler due to system signal...")
			return s.Shutdown()
		}
	},
}

func init() {
	rootCommand.AddCommand(daemonCommand)
	daemonCommand.Flags().StringVar(&passSchedule, "pass-schedule", "0 * * * *", "Cron schedule for the snapshot lifecycle pass")
	daemonCommand.Flags().StringVar(&bindAddress, "bind-address", "0.0.0.0:8080", "Address to bind the UI server")
}

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud/aws"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/config"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/notifications"
)

// RunPass is the CLI-facing entry point for one orchestration pass. It
// loads the configuration, connects the provider and drives RunSnapshotPass.
//
// Parameters:
//   - configPath: path to config.yml.
//   - timeoutSeconds: hard limit for the whole pass (0 = unlimited).
//   - logLevel: debug, info, warn or error.
//   - now: evaluation time, injected for deterministic testing; pass
//     time.Time{} for the current time.
func RunPass(configPath string, timeoutSeconds int, logLevel string, now time.Time) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := SetupLogger(logLevel, cfg.DefaultAWSProfile)
	logger.Info("Initializing snapshot lifecycle pass", "config", configPath)

	ctx := context.Background()
	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
		logger.Debug("Global pass timeout configured", "timeout_seconds", timeoutSeconds)
	}

	provider, err := initClient(cfg.DefaultAWSProfile)
	if err != nil {
		logger.Error("Provider client initialization failed", "error", err)
		return fmt.Errorf("client initialization failed: %w", err)
	}
	logger.Debug("Provider connection established")

	var webhook *notifications.Webhook
	if cfg.Webhook.URL != "" {
		webhook = &notifications.Webhook{
			URL:      cfg.Webhook.URL,
			Username: cfg.Webhook.Username,
			Password: cfg.Webhook.Password,
		}
	}

	report, err := RunSnapshotPass(ctx, provider, passConfig(cfg), logger, Options{
		Parallelism: cfg.Parallelism,
		Now:         now,
		Webhook:     webhook,
	})
	if err != nil {
		return err
	}

	if len(report.Errors) > 0 {
		return fmt.Errorf("pass %s finished with %d region-level errors", report.RunID, len(report.Errors))
	}
	return nil
}

// passConfig translates the file configuration into the engine's view.
func passConfig(cfg *config.Config) PassConfig {
	return PassConfig{
		Regions:        cfg.RegionNames(),
		Global:         cfg.Defaults,
		RegionDefaults: cfg.Regions,
	}
}

// initClient spins up the provider client with the pass retry profile.
func initClient(profile string) (cloud.Provider, error) {
	client := &aws.Client{
		ProfileName: profile,
		RetryConfig: cloud.RetryConfig{
			MaxRetries:       3,
			BaseDelay:        2 * time.Second,
			MaxDelay:         10 * time.Second,
			OperationTimeout: 30 * time.Second,
		},
	}
	if err := client.NewClient(); err != nil {
		return nil, err
	}
	return client, nil
}

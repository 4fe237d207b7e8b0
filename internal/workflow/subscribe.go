package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud/aws"
	"github.com/aravindh-murugesan/aws-shutter-go/internal/config"
)

// SubscribeInstance writes policy override tags onto an instance,
// enabling management. The instance may be addressed by id or by its Name
// tag. Only the overrides present in the tags map are written; existing
// unrelated tags are left untouched.
func SubscribeInstance(configPath, logLevel, region, idOrName string, tags map[string]string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if region == "" {
		region = cfg.DefaultAWSRegion
	}

	logger := SetupLogger(logLevel, cfg.DefaultAWSProfile).With("workflow", "subscribe", "region", region, "instance", idOrName)

	client := &aws.Client{
		ProfileName: cfg.DefaultAWSProfile,
		RetryConfig: cloud.RetryConfig{
			MaxRetries:       1,
			BaseDelay:        1 * time.Second,
			MaxDelay:         2 * time.Second,
			OperationTimeout: 10 * time.Second,
		},
	}
	if err := client.NewClient(); err != nil {
		return fmt.Errorf("failed to connect to cloud: %w", err)
	}

	ctx := context.Background()
	inst, found, err := client.FindInstance(ctx, region, idOrName)
	if err != nil {
		logger.Error("Instance lookup failed", "error", err)
		return err
	}
	if !found {
		return fmt.Errorf("no instance matching '%s' in region %s", idOrName, region)
	}

	logger.Info("Applying policy tags to instance", "instance_id", inst.ID, "tag_count", len(tags))
	if err := client.TagResource(ctx, region, inst.ID, tags); err != nil {
		logger.Error("Failed to apply policy tags", "error", err)
		return err
	}

	logger.Info("Subscription applied successfully", "instance_id", inst.ID)
	return nil
}

package aws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aravindh-murugesan/aws-shutter-go/internal/cloud"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
)

// Client implements cloud.Provider on top of EC2. It wraps the SDK with
// retry logic and keeps one service client per region, built lazily the
// first time a region is touched.
type Client struct {
	// ProfileName selects the shared-credentials profile.
	ProfileName string
	// RetryConfig defines the behavior for transient error handling.
	RetryConfig cloud.RetryConfig

	sess *session.Session

	mu      sync.Mutex
	regions map[string]*ec2.EC2
}

// NewClient establishes the session for the configured profile. Regional
// service clients are created on demand by svc.
func (c *Client) NewClient() error {
	slog.Debug("Initializing EC2 client", "profile", c.ProfileName)

	sess, err := session.NewSessionWithOptions(session.Options{
		Profile:           c.ProfileName,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return fmt.Errorf("session initialization failed for profile '%s': %w", c.ProfileName, err)
	}

	c.sess = sess
	c.regions = make(map[string]*ec2.EC2)
	return nil
}

// GetCloudProviderName returns the identifier for this provider.
func (c *Client) GetCloudProviderName() string {
	return "aws"
}

// svc returns the EC2 service client for a region, creating and caching it
// on first use.
func (c *Client) svc(region string) *ec2.EC2 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if svc, ok := c.regions[region]; ok {
		return svc
	}
	svc := ec2.New(c.sess, aws.NewConfig().WithRegion(region))
	c.regions[region] = svc
	return svc
}

// executeWithRetry runs an operation under the client's retry configuration.
func (c *Client) executeWithRetry(ctx context.Context, opName string, operation func(ctx context.Context) error) error {
	return ExecuteAction(ctx, c.RetryConfig, opName, operation)
}

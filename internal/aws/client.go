package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/vietdv277/stratus/pkg/provider"
)

// Client wraps AWS SDK clients and implements provider.CloudProvider.
type Client struct {
	EC2 *ec2.Client
	STS *sts.Client

	profile string
	region  string
}

// ClientOption allows customizing the AWS Client
type ClientOption func(*Client)

// WithProfile sets the AWS profile for the client
func WithProfile(profile string) ClientOption {
	return func(c *Client) {
		c.profile = profile
	}
}

// WithRegion sets the AWS region for the client
func WithRegion(region string) ClientOption {
	return func(c *Client) {
		c.region = region
	}
}

// NewClient creates a new AWS Client with the given options
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	c := &Client{}

	// Apply options
	for _, opt := range opts {
		opt(c)
	}

	// Build config options
	var configOpts []func(*config.LoadOptions) error

	if c.profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(c.profile))
	}

	if c.region != "" {
		configOpts = append(configOpts, config.WithRegion(c.region))
	}

	// Load AWS config
	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	if cfg.Region == "" {
		return nil, fmt.Errorf("no AWS region configured: %w", provider.ErrNotConfigured)
	}
	c.region = cfg.Region

	c.EC2 = ec2.NewFromConfig(cfg)
	c.STS = sts.NewFromConfig(cfg)

	return c, nil
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return "aws"
}

// Region returns the resolved region
func (c *Client) Region() string {
	return c.region
}

// Network returns the network lookup provider
func (c *Client) Network() provider.NetworkProvider {
	return c
}

// SecurityGroups returns the security group provider
func (c *Client) SecurityGroups() provider.SecurityGroupProvider {
	return &SecurityGroupClient{client: c}
}

// Instances returns the instance provider
func (c *Client) Instances() provider.InstanceProvider {
	return &InstanceClient{client: c}
}

// isNotFound reports whether err is an AWS "does not exist" API error.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.ErrorCode(), "NotFound")
	}
	return false
}

// deref safely dereferences a string pointer
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// derefBool safely dereferences a bool pointer
func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

// derefInt32 safely dereferences an int32 pointer
func derefInt32(i *int32) int32 {
	if i == nil {
		return 0
	}
	return *i
}

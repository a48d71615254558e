package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sts"

	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

// GetCallerIdentity returns the current AWS caller identity
func (c *Client) GetCallerIdentity(ctx context.Context) (*pkgtypes.CallerIdentity, error) {
	output, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity: %w", err)
	}

	return &pkgtypes.CallerIdentity{
		Account: deref(output.Account),
		Arn:     deref(output.Arn),
		UserID:  deref(output.UserId),
	}, nil
}

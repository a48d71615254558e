package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/vietdv277/stratus/pkg/provider"
	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

// DefaultVPC returns the account's default VPC for the configured region.
func (c *Client) DefaultVPC(ctx context.Context) (*pkgtypes.VPC, error) {
	output, err := c.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{
				Name:   aws.String("is-default"),
				Values: []string{"true"},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe VPCs: %w", err)
	}

	if len(output.Vpcs) == 0 {
		return nil, fmt.Errorf("account has no default VPC in %s: %w", c.region, provider.ErrNotFound)
	}

	vpc := toVPC(output.Vpcs[0])
	return &vpc, nil
}

// KeyPairExists reports whether a key pair with the given name exists.
func (c *Client) KeyPairExists(ctx context.Context, name string) (bool, error) {
	_, err := c.EC2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		KeyNames: []string{name},
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe key pair %q: %w", name, err)
	}
	return true, nil
}

// toVPC converts an EC2 VPC to our VPC type
func toVPC(v ec2types.Vpc) pkgtypes.VPC {
	vpc := pkgtypes.VPC{
		ID:        deref(v.VpcId),
		CIDR:      deref(v.CidrBlock),
		State:     string(v.State),
		IsDefault: derefBool(v.IsDefault),
		OwnerID:   deref(v.OwnerId),
	}

	// Extract Name tag
	for _, tag := range v.Tags {
		if deref(tag.Key) == "Name" {
			vpc.Name = deref(tag.Value)
			break
		}
	}

	return vpc
}

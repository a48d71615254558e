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

// SecurityGroupClient implements provider.SecurityGroupProvider for EC2.
type SecurityGroupClient struct {
	client *Client
}

// Get returns a security group by ID.
func (p *SecurityGroupClient) Get(ctx context.Context, id string) (*pkgtypes.SecurityGroup, error) {
	output, err := p.client.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, provider.ErrNotFound
		}
		return nil, fmt.Errorf("failed to describe security group %s: %w", id, err)
	}
	if len(output.SecurityGroups) == 0 {
		return nil, provider.ErrNotFound
	}

	sg := toSecurityGroup(output.SecurityGroups[0])
	return &sg, nil
}

// Create creates a security group with its declared rules and returns
// its ID. AWS adds an allow-all egress rule to new groups; SyncRules
// makes the declared egress set authoritative.
func (p *SecurityGroupClient) Create(ctx context.Context, spec pkgtypes.SecurityGroupSpec) (string, error) {
	output, err := p.client.EC2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(spec.Name),
		Description: aws.String(spec.Description),
		VpcId:       aws.String(spec.VPCID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group %q: %w", spec.Name, err)
	}

	id := deref(output.GroupId)

	if err := p.SyncRules(ctx, id, spec); err != nil {
		return id, err
	}

	return id, nil
}

// SyncRules makes the group's live rule sets match the spec's,
// authorizing missing rules and revoking extra ones.
func (p *SecurityGroupClient) SyncRules(ctx context.Context, id string, spec pkgtypes.SecurityGroupSpec) error {
	live, err := p.Get(ctx, id)
	if err != nil {
		return err
	}

	addIn, removeIn := diffRules(spec.Ingress, live.Ingress)
	addEg, removeEg := diffRules(spec.Egress, live.Egress)

	if len(addIn) > 0 {
		_, err := p.client.EC2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(id),
			IpPermissions: toPermissions(addIn),
		})
		if err != nil {
			return fmt.Errorf("failed to authorize ingress on %s: %w", id, err)
		}
	}
	if len(removeIn) > 0 {
		_, err := p.client.EC2.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       aws.String(id),
			IpPermissions: toPermissions(removeIn),
		})
		if err != nil {
			return fmt.Errorf("failed to revoke ingress on %s: %w", id, err)
		}
	}

	if len(addEg) > 0 {
		_, err := p.client.EC2.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       aws.String(id),
			IpPermissions: toPermissions(addEg),
		})
		if err != nil {
			return fmt.Errorf("failed to authorize egress on %s: %w", id, err)
		}
	}
	if len(removeEg) > 0 {
		_, err := p.client.EC2.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
			GroupId:       aws.String(id),
			IpPermissions: toPermissions(removeEg),
		})
		if err != nil {
			return fmt.Errorf("failed to revoke egress on %s: %w", id, err)
		}
	}

	return nil
}

// Delete removes a security group. A group that is already gone is
// not an error.
func (p *SecurityGroupClient) Delete(ctx context.Context, id string) error {
	_, err := p.client.EC2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete security group %s: %w", id, err)
	}
	return nil
}

// diffRules returns the rules to add (desired but not live) and to
// remove (live but not desired), compared as sets.
func diffRules(desired, live []pkgtypes.Rule) (add, remove []pkgtypes.Rule) {
	desiredKeys := make(map[string]bool)
	for _, r := range desired {
		desiredKeys[r.Key()] = true
	}
	liveKeys := make(map[string]bool)
	for _, r := range live {
		liveKeys[r.Key()] = true
	}

	for _, r := range desired {
		if !liveKeys[r.Key()] {
			add = append(add, r)
		}
	}
	for _, r := range live {
		if !desiredKeys[r.Key()] {
			remove = append(remove, r)
		}
	}

	return add, remove
}

// toPermissions converts rules to the EC2 permission wire shape.
func toPermissions(rules []pkgtypes.Rule) []ec2types.IpPermission {
	var perms []ec2types.IpPermission
	for _, r := range rules {
		perm := ec2types.IpPermission{
			IpProtocol: aws.String(r.Protocol),
		}
		// Protocol -1 covers all ports; the API rejects port values there.
		if r.Protocol != "-1" {
			perm.FromPort = aws.Int32(r.FromPort)
			perm.ToPort = aws.Int32(r.ToPort)
		}
		for _, cidr := range r.CIDRBlocks {
			perm.IpRanges = append(perm.IpRanges, ec2types.IpRange{
				CidrIp: aws.String(cidr),
			})
		}
		perms = append(perms, perm)
	}
	return perms
}

// toSecurityGroup converts an EC2 security group to our type.
func toSecurityGroup(sg ec2types.SecurityGroup) pkgtypes.SecurityGroup {
	return pkgtypes.SecurityGroup{
		ID:          deref(sg.GroupId),
		Name:        deref(sg.GroupName),
		Description: deref(sg.Description),
		VPCID:       deref(sg.VpcId),
		Ingress:     toRules(sg.IpPermissions),
		Egress:      toRules(sg.IpPermissionsEgress),
	}
}

// toRules converts EC2 permissions to rules. Permissions carrying only
// group or prefix-list sources yield no CIDR rule.
func toRules(perms []ec2types.IpPermission) []pkgtypes.Rule {
	var rules []pkgtypes.Rule
	for _, p := range perms {
		if len(p.IpRanges) == 0 {
			continue
		}
		r := pkgtypes.Rule{
			FromPort: derefInt32(p.FromPort),
			ToPort:   derefInt32(p.ToPort),
			Protocol: deref(p.IpProtocol),
		}
		for _, ipr := range p.IpRanges {
			r.CIDRBlocks = append(r.CIDRBlocks, deref(ipr.CidrIp))
		}
		rules = append(rules, r)
	}
	return rules
}

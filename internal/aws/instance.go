package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/vietdv277/stratus/pkg/provider"
	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

const (
	runningWaitTimeout    = 5 * time.Minute
	terminatedWaitTimeout = 10 * time.Minute

	fallbackRootDevice = "/dev/xvda"
)

// InstanceClient implements provider.InstanceProvider for EC2.
type InstanceClient struct {
	client *Client
}

// Get returns an instance by ID. Terminated instances are reported as
// not found so the engine plans them as gone.
func (p *InstanceClient) Get(ctx context.Context, id string) (*pkgtypes.Instance, error) {
	output, err := p.client.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, provider.ErrNotFound
		}
		return nil, fmt.Errorf("failed to describe instance %s: %w", id, err)
	}

	for _, reservation := range output.Reservations {
		for _, inst := range reservation.Instances {
			state := inst.State.Name
			if state == ec2types.InstanceStateNameTerminated || state == ec2types.InstanceStateNameShuttingDown {
				continue
			}
			converted := p.toInstance(ctx, inst)
			return &converted, nil
		}
	}

	return nil, provider.ErrNotFound
}

// Launch starts a new instance and waits until it is running.
func (p *InstanceClient) Launch(ctx context.Context, spec pkgtypes.InstanceSpec) (*pkgtypes.Instance, error) {
	rootDevice, err := p.rootDeviceName(ctx, spec.AMI)
	if err != nil {
		return nil, err
	}

	input := &ec2.RunInstancesInput{
		ImageId:          aws.String(spec.AMI),
		InstanceType:     ec2types.InstanceType(spec.Type),
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		SecurityGroupIds: spec.SecurityGroupIDs,
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{
			{
				DeviceName: aws.String(rootDevice),
				Ebs: &ec2types.EbsBlockDevice{
					VolumeSize:          aws.Int32(spec.RootVolume.Size),
					VolumeType:          ec2types.VolumeType(spec.RootVolume.Type),
					DeleteOnTermination: aws.Bool(spec.RootVolume.DeleteOnTermination),
				},
			},
		},
		TagSpecifications: []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeInstance,
				Tags:         toTags(spec),
			},
		},
	}
	if spec.KeyName != "" {
		input.KeyName = aws.String(spec.KeyName)
	}

	output, err := p.client.EC2.RunInstances(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to launch instance %q: %w", spec.Name, err)
	}
	if len(output.Instances) == 0 {
		return nil, fmt.Errorf("launch of %q returned no instance", spec.Name)
	}

	id := deref(output.Instances[0].InstanceId)

	waiter := ec2.NewInstanceRunningWaiter(p.client.EC2)
	err = waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	}, runningWaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("instance %s did not reach running state: %w", id, err)
	}

	// Re-describe so the result carries the assigned public IP and DNS.
	return p.Get(ctx, id)
}

// UpdateTags replaces the instance's managed tags with the given set.
// AWS-reserved tags (aws: prefix) are left alone.
func (p *InstanceClient) UpdateTags(ctx context.Context, id string, tags map[string]string) error {
	live, err := p.Get(ctx, id)
	if err != nil {
		return err
	}

	var remove []ec2types.Tag
	for key := range live.Tags {
		if _, ok := tags[key]; !ok {
			remove = append(remove, ec2types.Tag{Key: aws.String(key)})
		}
	}
	if len(remove) > 0 {
		_, err := p.client.EC2.DeleteTags(ctx, &ec2.DeleteTagsInput{
			Resources: []string{id},
			Tags:      remove,
		})
		if err != nil {
			return fmt.Errorf("failed to delete tags on %s: %w", id, err)
		}
	}

	var add []ec2types.Tag
	for key, value := range tags {
		add = append(add, ec2types.Tag{
			Key:   aws.String(key),
			Value: aws.String(value),
		})
	}
	if len(add) > 0 {
		_, err := p.client.EC2.CreateTags(ctx, &ec2.CreateTagsInput{
			Resources: []string{id},
			Tags:      add,
		})
		if err != nil {
			return fmt.Errorf("failed to create tags on %s: %w", id, err)
		}
	}

	return nil
}

// UpdateSecurityGroups replaces the instance's attached security groups.
func (p *InstanceClient) UpdateSecurityGroups(ctx context.Context, id string, groupIDs []string) error {
	_, err := p.client.EC2.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
		InstanceId: aws.String(id),
		Groups:     groupIDs,
	})
	if err != nil {
		return fmt.Errorf("failed to update security groups on %s: %w", id, err)
	}
	return nil
}

// Terminate destroys an instance and waits until it is terminated.
func (p *InstanceClient) Terminate(ctx context.Context, id string) error {
	_, err := p.client.EC2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to terminate instance %s: %w", id, err)
	}

	waiter := ec2.NewInstanceTerminatedWaiter(p.client.EC2)
	err = waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	}, terminatedWaitTimeout)
	if err != nil {
		return fmt.Errorf("instance %s did not reach terminated state: %w", id, err)
	}

	return nil
}

// rootDeviceName returns the AMI's root device name so the root volume
// override lands on the right device.
func (p *InstanceClient) rootDeviceName(ctx context.Context, ami string) (string, error) {
	output, err := p.client.EC2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{ami},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe AMI %s: %w", ami, err)
	}
	if len(output.Images) == 0 || output.Images[0].RootDeviceName == nil {
		return fallbackRootDevice, nil
	}
	return *output.Images[0].RootDeviceName, nil
}

// toTags builds the launch tag set, defaulting the Name tag to the
// declared resource name.
func toTags(spec pkgtypes.InstanceSpec) []ec2types.Tag {
	tags := []ec2types.Tag{}
	hasName := false
	for key, value := range spec.Tags {
		if key == "Name" {
			hasName = true
		}
		tags = append(tags, ec2types.Tag{
			Key:   aws.String(key),
			Value: aws.String(value),
		})
	}
	if !hasName {
		tags = append(tags, ec2types.Tag{
			Key:   aws.String("Name"),
			Value: aws.String(spec.Name),
		})
	}
	return tags
}

// toInstance converts an EC2 instance to our Instance type, resolving
// the root volume's size and type.
func (p *InstanceClient) toInstance(ctx context.Context, i ec2types.Instance) pkgtypes.Instance {
	inst := pkgtypes.Instance{
		ID:        deref(i.InstanceId),
		AMI:       deref(i.ImageId),
		Type:      string(i.InstanceType),
		KeyName:   deref(i.KeyName),
		State:     string(i.State.Name),
		PrivateIP: deref(i.PrivateIpAddress),
		PublicIP:  deref(i.PublicIpAddress),
		PublicDNS: deref(i.PublicDnsName),
		Tags:      make(map[string]string),
	}

	if i.Placement != nil {
		inst.AZ = deref(i.Placement.AvailabilityZone)
	}
	if i.LaunchTime != nil {
		inst.LaunchTime = *i.LaunchTime
	}

	for _, sg := range i.SecurityGroups {
		inst.SecurityGroupIDs = append(inst.SecurityGroupIDs, deref(sg.GroupId))
	}

	for _, tag := range i.Tags {
		key := deref(tag.Key)
		if strings.HasPrefix(key, "aws:") {
			continue
		}
		inst.Tags[key] = deref(tag.Value)
		if key == "Name" {
			inst.Name = deref(tag.Value)
		}
	}

	inst.RootVolume = p.rootVolume(ctx, i)

	return inst
}

// rootVolume looks up the instance's root EBS volume. Failures here are
// tolerated; an unresolved volume diffs as a change, which is the safe
// direction.
func (p *InstanceClient) rootVolume(ctx context.Context, i ec2types.Instance) pkgtypes.RootVolume {
	rootDevice := deref(i.RootDeviceName)

	for _, mapping := range i.BlockDeviceMappings {
		if deref(mapping.DeviceName) != rootDevice || mapping.Ebs == nil {
			continue
		}

		vol := pkgtypes.RootVolume{
			DeleteOnTermination: derefBool(mapping.Ebs.DeleteOnTermination),
		}

		volumeID := deref(mapping.Ebs.VolumeId)
		if volumeID == "" {
			return vol
		}

		output, err := p.client.EC2.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
			VolumeIds: []string{volumeID},
		})
		if err == nil && len(output.Volumes) > 0 {
			vol.Size = derefInt32(output.Volumes[0].Size)
			vol.Type = string(output.Volumes[0].VolumeType)
		}

		return vol
	}

	return pkgtypes.RootVolume{}
}

package bundle

import (
	"fmt"
	"net"
	"regexp"
)

var (
	amiPattern     = regexp.MustCompile(`^ami-[0-9a-f]+$`)
	groupIDPattern = regexp.MustCompile(`^sg-[0-9a-f]+$`)
)

// volumeTypes are the EBS volume types the provider accepts.
var volumeTypes = map[string]bool{
	"gp2":      true,
	"gp3":      true,
	"io1":      true,
	"io2":      true,
	"sc1":      true,
	"st1":      true,
	"standard": true,
}

// protocols accepted in security group rules. "-1" means all protocols.
var protocols = map[string]bool{
	"tcp":  true,
	"udp":  true,
	"icmp": true,
	"-1":   true,
}

// outputAttributes are the instance attributes an output may project.
var outputAttributes = map[string]bool{
	"public_ip":   true,
	"public_dns":  true,
	"private_ip":  true,
	"instance_id": true,
}

// Validate statically checks the bundle. It returns every problem found
// rather than stopping at the first.
func (b *Bundle) Validate() []error {
	var errs []error

	if len(b.Instances) == 0 {
		errs = append(errs, fmt.Errorf("bundle declares no instances"))
	}

	errs = append(errs, b.validateSecurityGroups()...)
	errs = append(errs, b.validateInstances()...)
	errs = append(errs, b.validateOutputs()...)

	return errs
}

func (b *Bundle) validateSecurityGroups() []error {
	var errs []error

	seen := make(map[string]bool)
	for _, sg := range b.SecurityGroups {
		if sg.Name == "" {
			errs = append(errs, fmt.Errorf("security group with empty name"))
			continue
		}
		if seen[sg.Name] {
			errs = append(errs, fmt.Errorf("duplicate security group %q", sg.Name))
		}
		seen[sg.Name] = true

		if sg.Description == "" {
			errs = append(errs, fmt.Errorf("security group %q: description is required", sg.Name))
		}

		for _, r := range sg.Ingress {
			errs = append(errs, validateRule(sg.Name, "ingress", r)...)
		}
		for _, r := range sg.Egress {
			errs = append(errs, validateRule(sg.Name, "egress", r)...)
		}
	}

	return errs
}

func validateRule(group, direction string, r Rule) []error {
	var errs []error

	if r.FromPort < 0 || r.FromPort > 65535 || r.ToPort < 0 || r.ToPort > 65535 {
		errs = append(errs, fmt.Errorf("security group %q: %s rule ports must be in [0, 65535]", group, direction))
	}
	if r.FromPort > r.ToPort {
		errs = append(errs, fmt.Errorf("security group %q: %s rule from_port %d exceeds to_port %d", group, direction, r.FromPort, r.ToPort))
	}
	if !protocols[r.Protocol] {
		errs = append(errs, fmt.Errorf("security group %q: %s rule protocol %q is not one of tcp, udp, icmp, -1", group, direction, r.Protocol))
	}
	if len(r.CIDRBlocks) == 0 {
		errs = append(errs, fmt.Errorf("security group %q: %s rule has no cidr_blocks", group, direction))
	}
	for _, cidr := range r.CIDRBlocks {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = append(errs, fmt.Errorf("security group %q: %s rule has invalid CIDR %q", group, direction, cidr))
		}
	}

	return errs
}

func (b *Bundle) validateInstances() []error {
	var errs []error

	seen := make(map[string]bool)
	for _, inst := range b.Instances {
		if inst.Name == "" {
			errs = append(errs, fmt.Errorf("instance with empty name"))
			continue
		}
		if seen[inst.Name] {
			errs = append(errs, fmt.Errorf("duplicate instance %q", inst.Name))
		}
		seen[inst.Name] = true

		if !amiPattern.MatchString(inst.AMI) {
			errs = append(errs, fmt.Errorf("instance %q: ami %q is not a valid AMI ID", inst.Name, inst.AMI))
		}
		if inst.InstanceType == "" {
			errs = append(errs, fmt.Errorf("instance %q: instance_type is required", inst.Name))
		}

		if inst.RootVolume.Size <= 0 {
			errs = append(errs, fmt.Errorf("instance %q: root_volume.size must be a positive integer", inst.Name))
		}
		if !volumeTypes[inst.RootVolume.Type] {
			errs = append(errs, fmt.Errorf("instance %q: root_volume.type %q is not an accepted volume type", inst.Name, inst.RootVolume.Type))
		}

		// VPC instances attach groups by ID, never by name. A reference
		// here must resolve to a group declared in this bundle.
		for _, ref := range inst.SecurityGroups {
			if b.FindSecurityGroup(ref) == nil {
				errs = append(errs, fmt.Errorf(
					"instance %q: security group %q is not declared in this bundle; pre-existing groups must be attached by ID via security_group_ids",
					inst.Name, ref))
			}
		}
		for _, id := range inst.SecurityGroupIDs {
			if !groupIDPattern.MatchString(id) {
				errs = append(errs, fmt.Errorf("instance %q: security_group_ids entry %q is not a valid group ID", inst.Name, id))
			}
		}
		if len(inst.SecurityGroups) == 0 && len(inst.SecurityGroupIDs) == 0 {
			errs = append(errs, fmt.Errorf("instance %q: no security groups attached", inst.Name))
		}
	}

	return errs
}

func (b *Bundle) validateOutputs() []error {
	var errs []error

	seen := make(map[string]bool)
	for _, out := range b.Outputs {
		if out.Name == "" {
			errs = append(errs, fmt.Errorf("output with empty name"))
			continue
		}
		if seen[out.Name] {
			errs = append(errs, fmt.Errorf("duplicate output %q", out.Name))
		}
		seen[out.Name] = true

		if b.FindInstance(out.Instance) == nil {
			errs = append(errs, fmt.Errorf("output %q: instance %q is not declared in this bundle", out.Name, out.Instance))
		}
		if !outputAttributes[out.Attribute] {
			errs = append(errs, fmt.Errorf("output %q: attribute %q is not one of public_ip, public_dns, private_ip, instance_id", out.Name, out.Attribute))
		}
	}

	return errs
}

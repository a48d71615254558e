package bundle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vietdv277/stratus/pkg/types"
)

// Bundle is a parsed declaration file. It describes the desired cloud
// resources: security groups, instances, and named outputs.
type Bundle struct {
	Provider       Provider        `yaml:"provider"`
	SecurityGroups []SecurityGroup `yaml:"security_groups"`
	Instances      []Instance      `yaml:"instances"`
	Outputs        []Output        `yaml:"outputs"`
}

// Provider selects the region and optional shared-config profile.
type Provider struct {
	Region  string `yaml:"region,omitempty"`
	Profile string `yaml:"profile,omitempty"`
}

// SecurityGroup declares a security group to be created in the
// account's default VPC.
type SecurityGroup struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Ingress     []Rule `yaml:"ingress,omitempty"`
	Egress      []Rule `yaml:"egress,omitempty"`
}

// Rule declares a single ingress or egress permission.
type Rule struct {
	FromPort   int32    `yaml:"from_port"`
	ToPort     int32    `yaml:"to_port"`
	Protocol   string   `yaml:"protocol"`
	CIDRBlocks []string `yaml:"cidr_blocks"`
}

// Instance declares an EC2 instance. SecurityGroups lists names of
// security groups declared in the same bundle; pre-existing groups are
// attached by ID via SecurityGroupIDs.
type Instance struct {
	Name             string            `yaml:"name"`
	AMI              string            `yaml:"ami"`
	InstanceType     string            `yaml:"instance_type"`
	KeyName          string            `yaml:"key_name,omitempty"`
	SecurityGroups   []string          `yaml:"security_groups,omitempty"`
	SecurityGroupIDs []string          `yaml:"security_group_ids,omitempty"`
	RootVolume       RootVolume        `yaml:"root_volume"`
	Tags             map[string]string `yaml:"tags,omitempty"`
}

// RootVolume declares the instance's root block device.
type RootVolume struct {
	Size                int32  `yaml:"size"`
	Type                string `yaml:"type"`
	DeleteOnTermination *bool  `yaml:"delete_on_termination,omitempty"`
}

// Output declares a named projection of an instance attribute,
// resolved after the instance exists.
type Output struct {
	Name      string `yaml:"name"`
	Instance  string `yaml:"instance"`
	Attribute string `yaml:"attribute"`
}

// Load reads and parses a bundle file and applies defaults.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle file: %w", err)
	}

	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bundle file: %w", err)
	}

	b.applyDefaults()

	return &b, nil
}

// applyDefaults fills in values the declaration may omit.
func (b *Bundle) applyDefaults() {
	for i := range b.Instances {
		inst := &b.Instances[i]
		if inst.RootVolume.DeleteOnTermination == nil {
			t := true
			inst.RootVolume.DeleteOnTermination = &t
		}
	}
}

// FindSecurityGroup returns the declared security group with the given
// name, or nil.
func (b *Bundle) FindSecurityGroup(name string) *SecurityGroup {
	for i := range b.SecurityGroups {
		if b.SecurityGroups[i].Name == name {
			return &b.SecurityGroups[i]
		}
	}
	return nil
}

// FindInstance returns the declared instance with the given name, or nil.
func (b *Bundle) FindInstance(name string) *Instance {
	for i := range b.Instances {
		if b.Instances[i].Name == name {
			return &b.Instances[i]
		}
	}
	return nil
}

// Spec converts the declaration into the shape the cloud provider
// consumes, bound to the given VPC.
func (sg *SecurityGroup) Spec(vpcID string) types.SecurityGroupSpec {
	return types.SecurityGroupSpec{
		Name:        sg.Name,
		Description: sg.Description,
		VPCID:       vpcID,
		Ingress:     toRules(sg.Ingress),
		Egress:      toRules(sg.Egress),
	}
}

// Spec converts the declaration into a launch spec. The caller supplies
// the full set of resolved security group IDs.
func (in *Instance) Spec(groupIDs []string) types.InstanceSpec {
	spec := types.InstanceSpec{
		Name:             in.Name,
		AMI:              in.AMI,
		Type:             in.InstanceType,
		KeyName:          in.KeyName,
		SecurityGroupIDs: groupIDs,
		RootVolume: types.RootVolume{
			Size: in.RootVolume.Size,
			Type: in.RootVolume.Type,
		},
		Tags: in.Tags,
	}
	if in.RootVolume.DeleteOnTermination != nil {
		spec.RootVolume.DeleteOnTermination = *in.RootVolume.DeleteOnTermination
	}
	return spec
}

func toRules(rules []Rule) []types.Rule {
	var out []types.Rule
	for _, r := range rules {
		out = append(out, types.Rule{
			FromPort:   r.FromPort,
			ToPort:     r.ToPort,
			Protocol:   r.Protocol,
			CIDRBlocks: r.CIDRBlocks,
		})
	}
	return out
}

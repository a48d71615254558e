package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/vietdv277/stratus/pkg/provider"
	"github.com/vietdv277/stratus/pkg/types"
)

// fakeCloud is an in-memory provider.CloudProvider for engine tests.
// It mimics the provider behaviors the engine depends on: group IDs
// assigned at create time, default Name tags at launch, dependency
// errors when deleting an attached group, and a record of the order
// resources were destroyed in.
type fakeCloud struct {
	vpc      types.VPC
	keyPairs map[string]bool

	groups    map[string]*types.SecurityGroup
	instances map[string]*types.Instance

	// syncRulesErr, when set, makes rule syncs fail. Creates still
	// produce the group, mirroring a create that succeeds before its
	// rule sync is denied.
	syncRulesErr error

	nextID       int
	destroyOrder []string
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		vpc:       types.VPC{ID: "vpc-0000aaaa", CIDR: "172.31.0.0/16", IsDefault: true},
		keyPairs:  map[string]bool{"deployer": true},
		groups:    make(map[string]*types.SecurityGroup),
		instances: make(map[string]*types.Instance),
	}
}

func (f *fakeCloud) Name() string                                  { return "fake" }
func (f *fakeCloud) Network() provider.NetworkProvider             { return f }
func (f *fakeCloud) SecurityGroups() provider.SecurityGroupProvider { return &fakeGroups{f} }
func (f *fakeCloud) Instances() provider.InstanceProvider          { return &fakeInstances{f} }

func (f *fakeCloud) DefaultVPC(ctx context.Context) (*types.VPC, error) {
	vpc := f.vpc
	return &vpc, nil
}

func (f *fakeCloud) KeyPairExists(ctx context.Context, name string) (bool, error) {
	return f.keyPairs[name], nil
}

func (f *fakeCloud) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%08d", prefix, f.nextID)
}

type fakeGroups struct {
	f *fakeCloud
}

func (p *fakeGroups) Get(ctx context.Context, id string) (*types.SecurityGroup, error) {
	sg, ok := p.f.groups[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	copied := *sg
	return &copied, nil
}

func (p *fakeGroups) Create(ctx context.Context, spec types.SecurityGroupSpec) (string, error) {
	id := p.f.newID("sg")
	sg := &types.SecurityGroup{
		ID:          id,
		Name:        spec.Name,
		Description: spec.Description,
		VPCID:       spec.VPCID,
	}
	p.f.groups[id] = sg
	if p.f.syncRulesErr != nil {
		return id, p.f.syncRulesErr
	}
	sg.Ingress = spec.Ingress
	sg.Egress = spec.Egress
	return id, nil
}

func (p *fakeGroups) SyncRules(ctx context.Context, id string, spec types.SecurityGroupSpec) error {
	if p.f.syncRulesErr != nil {
		return p.f.syncRulesErr
	}
	sg, ok := p.f.groups[id]
	if !ok {
		return provider.ErrNotFound
	}
	sg.Ingress = spec.Ingress
	sg.Egress = spec.Egress
	return nil
}

func (p *fakeGroups) Delete(ctx context.Context, id string) error {
	for _, inst := range p.f.instances {
		if slices.Contains(inst.SecurityGroupIDs, id) {
			return fmt.Errorf("security group %s has a dependent object", id)
		}
	}
	delete(p.f.groups, id)
	p.f.destroyOrder = append(p.f.destroyOrder, id)
	return nil
}

type fakeInstances struct {
	f *fakeCloud
}

func (p *fakeInstances) Get(ctx context.Context, id string) (*types.Instance, error) {
	inst, ok := p.f.instances[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	copied := *inst
	return &copied, nil
}

func (p *fakeInstances) Launch(ctx context.Context, spec types.InstanceSpec) (*types.Instance, error) {
	id := p.f.newID("i")

	tags := make(map[string]string, len(spec.Tags)+1)
	for k, v := range spec.Tags {
		tags[k] = v
	}
	if _, ok := tags["Name"]; !ok {
		tags["Name"] = spec.Name
	}

	inst := &types.Instance{
		ID:               id,
		Name:             tags["Name"],
		AMI:              spec.AMI,
		Type:             spec.Type,
		KeyName:          spec.KeyName,
		State:            "running",
		AZ:               "us-east-1a",
		PrivateIP:        fmt.Sprintf("172.31.0.%d", p.f.nextID),
		PublicIP:         fmt.Sprintf("203.0.113.%d", p.f.nextID),
		PublicDNS:        fmt.Sprintf("ec2-203-0-113-%d.compute-1.amazonaws.com", p.f.nextID),
		SecurityGroupIDs: spec.SecurityGroupIDs,
		RootVolume:       spec.RootVolume,
		Tags:             tags,
	}
	p.f.instances[id] = inst

	copied := *inst
	return &copied, nil
}

func (p *fakeInstances) UpdateTags(ctx context.Context, id string, tags map[string]string) error {
	inst, ok := p.f.instances[id]
	if !ok {
		return provider.ErrNotFound
	}
	inst.Tags = tags
	inst.Name = tags["Name"]
	return nil
}

func (p *fakeInstances) UpdateSecurityGroups(ctx context.Context, id string, groupIDs []string) error {
	inst, ok := p.f.instances[id]
	if !ok {
		return provider.ErrNotFound
	}
	inst.SecurityGroupIDs = groupIDs
	return nil
}

func (p *fakeInstances) Terminate(ctx context.Context, id string) error {
	delete(p.f.instances, id)
	p.f.destroyOrder = append(p.f.destroyOrder, id)
	return nil
}

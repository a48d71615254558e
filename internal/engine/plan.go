package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vietdv277/stratus/internal/bundle"
	"github.com/vietdv277/stratus/internal/state"
	"github.com/vietdv277/stratus/pkg/types"
)

// Action classifies what the engine will do to a resource.
type Action string

const (
	ActionNoop    Action = "noop"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionReplace Action = "replace"
	ActionDelete  Action = "delete"
)

// unknownValue stands in for attributes only known after apply.
const unknownValue = "(known after apply)"

// AttrDiff records one attribute difference between desired and live.
type AttrDiff struct {
	Attribute     string
	Old           string
	New           string
	ForcesReplace bool
}

// Change is one planned resource action.
type Change struct {
	Kind   string
	Name   string
	Action Action
	Diffs  []AttrDiff
}

// Plan is the ordered set of changes reconciliation will perform.
// Security groups come before the instances that reference them.
type Plan struct {
	Changes []Change
}

// HasChanges reports whether the plan does anything at all.
func (p *Plan) HasChanges() bool {
	for _, c := range p.Changes {
		if c.Action != ActionNoop {
			return true
		}
	}
	return false
}

// Counts tallies changes by action for the plan summary line.
func (p *Plan) Counts() (add, change, replace, destroy int) {
	for _, c := range p.Changes {
		switch c.Action {
		case ActionCreate:
			add++
		case ActionUpdate:
			change++
		case ActionReplace:
			replace++
		case ActionDelete:
			destroy++
		}
	}
	return add, change, replace, destroy
}

// Plan refreshes tracked resources and diffs the bundle against them.
func (e *Engine) Plan(ctx context.Context) (*Plan, error) {
	snap, err := e.refresh(ctx)
	if err != nil {
		return nil, err
	}
	return e.plan(snap), nil
}

func (e *Engine) plan(snap *snapshot) *Plan {
	p := &Plan{}

	groupActions := make(map[string]Action)

	// Security groups declared in the bundle.
	for i := range e.bundle.SecurityGroups {
		sg := &e.bundle.SecurityGroups[i]
		change := diffSecurityGroup(sg, snap.groups[sg.Name])
		groupActions[sg.Name] = change.Action
		p.Changes = append(p.Changes, change)
	}

	// Security groups tracked in state but no longer declared. Refresh
	// already dropped anything deleted out-of-band, so these are alive.
	for _, r := range e.state.Resources {
		if r.Kind != state.KindSecurityGroup || e.bundle.FindSecurityGroup(r.Name) != nil {
			continue
		}
		groupActions[r.Name] = ActionDelete
		p.Changes = append(p.Changes, Change{
			Kind:   state.KindSecurityGroup,
			Name:   r.Name,
			Action: ActionDelete,
		})
	}

	// Instances declared in the bundle.
	for i := range e.bundle.Instances {
		in := &e.bundle.Instances[i]
		p.Changes = append(p.Changes, diffInstance(in, snap, groupActions))
	}

	// Instances tracked in state but no longer declared.
	for _, r := range e.state.Resources {
		if r.Kind != state.KindInstance || e.bundle.FindInstance(r.Name) != nil {
			continue
		}
		p.Changes = append(p.Changes, Change{
			Kind:   state.KindInstance,
			Name:   r.Name,
			Action: ActionDelete,
		})
	}

	return p
}

// diffSecurityGroup classifies one declared group against its live
// counterpart. Name and description are create-time attributes and
// force a replace; rule sets are updated in place.
func diffSecurityGroup(sg *bundle.SecurityGroup, live *types.SecurityGroup) Change {
	change := Change{
		Kind: state.KindSecurityGroup,
		Name: sg.Name,
	}

	if live == nil {
		change.Action = ActionCreate
		change.Diffs = []AttrDiff{
			{Attribute: "name", New: sg.Name},
			{Attribute: "description", New: sg.Description},
		}
		return change
	}

	if live.Name != sg.Name {
		change.Diffs = append(change.Diffs, AttrDiff{
			Attribute: "name", Old: live.Name, New: sg.Name, ForcesReplace: true,
		})
	}
	if live.Description != sg.Description {
		change.Diffs = append(change.Diffs, AttrDiff{
			Attribute: "description", Old: live.Description, New: sg.Description, ForcesReplace: true,
		})
	}

	spec := sg.Spec(live.VPCID)
	if !rulesEqual(spec.Ingress, live.Ingress) {
		change.Diffs = append(change.Diffs, AttrDiff{
			Attribute: "ingress",
			Old:       formatRules(live.Ingress),
			New:       formatRules(spec.Ingress),
		})
	}
	if !rulesEqual(spec.Egress, live.Egress) {
		change.Diffs = append(change.Diffs, AttrDiff{
			Attribute: "egress",
			Old:       formatRules(live.Egress),
			New:       formatRules(spec.Egress),
		})
	}

	change.Action = classify(change.Diffs)
	return change
}

// diffInstance classifies one declared instance. AMI, instance type,
// key pair, and root volume are launch-time attributes and force a
// replace; tags and the attached group set are updated in place. An
// instance whose referenced group is being replaced must itself be
// replaced, since the old group cannot be deleted while attached.
func diffInstance(in *bundle.Instance, snap *snapshot, groupActions map[string]Action) Change {
	change := Change{
		Kind: state.KindInstance,
		Name: in.Name,
	}

	live := snap.instances[in.Name]
	if live == nil {
		change.Action = ActionCreate
		change.Diffs = []AttrDiff{
			{Attribute: "ami", New: in.AMI},
			{Attribute: "instance_type", New: in.InstanceType},
			{Attribute: "public_ip", New: unknownValue},
			{Attribute: "public_dns", New: unknownValue},
		}
		return change
	}

	if live.AMI != in.AMI {
		change.Diffs = append(change.Diffs, AttrDiff{
			Attribute: "ami", Old: live.AMI, New: in.AMI, ForcesReplace: true,
		})
	}
	if live.Type != in.InstanceType {
		change.Diffs = append(change.Diffs, AttrDiff{
			Attribute: "instance_type", Old: live.Type, New: in.InstanceType, ForcesReplace: true,
		})
	}
	if live.KeyName != in.KeyName {
		change.Diffs = append(change.Diffs, AttrDiff{
			Attribute: "key_name", Old: live.KeyName, New: in.KeyName, ForcesReplace: true,
		})
	}

	change.Diffs = append(change.Diffs, diffRootVolume(in, live)...)

	if diff, ok := diffGroupSet(in, live, snap, groupActions); ok {
		change.Diffs = append(change.Diffs, diff)
	}

	desiredTags := withNameTag(in)
	if !tagsEqual(desiredTags, live.Tags) {
		change.Diffs = append(change.Diffs, AttrDiff{
			Attribute: "tags",
			Old:       formatTags(live.Tags),
			New:       formatTags(desiredTags),
		})
	}

	change.Action = classify(change.Diffs)
	return change
}

func diffRootVolume(in *bundle.Instance, live *types.Instance) []AttrDiff {
	var diffs []AttrDiff

	if live.RootVolume.Size != in.RootVolume.Size {
		diffs = append(diffs, AttrDiff{
			Attribute:     "root_volume.size",
			Old:           fmt.Sprintf("%d", live.RootVolume.Size),
			New:           fmt.Sprintf("%d", in.RootVolume.Size),
			ForcesReplace: true,
		})
	}
	if live.RootVolume.Type != in.RootVolume.Type {
		diffs = append(diffs, AttrDiff{
			Attribute:     "root_volume.type",
			Old:           live.RootVolume.Type,
			New:           in.RootVolume.Type,
			ForcesReplace: true,
		})
	}
	if in.RootVolume.DeleteOnTermination != nil && live.RootVolume.DeleteOnTermination != *in.RootVolume.DeleteOnTermination {
		diffs = append(diffs, AttrDiff{
			Attribute:     "root_volume.delete_on_termination",
			Old:           fmt.Sprintf("%t", live.RootVolume.DeleteOnTermination),
			New:           fmt.Sprintf("%t", *in.RootVolume.DeleteOnTermination),
			ForcesReplace: true,
		})
	}

	return diffs
}

// diffGroupSet compares the instance's attached groups with the desired
// set. Groups still to be created diff against an unknown placeholder;
// a replaced group forces the instance to be replaced with it.
func diffGroupSet(in *bundle.Instance, live *types.Instance, snap *snapshot, groupActions map[string]Action) (AttrDiff, bool) {
	forcesReplace := false
	unknown := false

	var desired []string
	for _, ref := range in.SecurityGroups {
		switch groupActions[ref] {
		case ActionReplace:
			forcesReplace = true
			unknown = true
		case ActionCreate:
			unknown = true
		default:
			if g, ok := snap.groups[ref]; ok {
				desired = append(desired, g.ID)
			}
		}
	}
	desired = append(desired, in.SecurityGroupIDs...)

	liveIDs := append([]string(nil), live.SecurityGroupIDs...)
	sort.Strings(desired)
	sort.Strings(liveIDs)

	if !unknown && strings.Join(desired, ",") == strings.Join(liveIDs, ",") {
		return AttrDiff{}, false
	}

	newValue := strings.Join(desired, ", ")
	if unknown {
		newValue = unknownValue
	}

	return AttrDiff{
		Attribute:     "security_groups",
		Old:           strings.Join(liveIDs, ", "),
		New:           newValue,
		ForcesReplace: forcesReplace,
	}, true
}

// classify turns a diff list into an action.
func classify(diffs []AttrDiff) Action {
	if len(diffs) == 0 {
		return ActionNoop
	}
	for _, d := range diffs {
		if d.ForcesReplace {
			return ActionReplace
		}
	}
	return ActionUpdate
}

// withNameTag returns the instance's declared tags with the Name tag
// defaulted to the resource name, matching what launch applies.
func withNameTag(in *bundle.Instance) map[string]string {
	tags := make(map[string]string, len(in.Tags)+1)
	for k, v := range in.Tags {
		tags[k] = v
	}
	if _, ok := tags["Name"]; !ok {
		tags["Name"] = in.Name
	}
	return tags
}

func rulesEqual(a, b []types.Rule) bool {
	if len(a) != len(b) {
		return false
	}
	keys := make(map[string]int)
	for _, r := range a {
		keys[r.Key()]++
	}
	for _, r := range b {
		keys[r.Key()]--
	}
	for _, n := range keys {
		if n != 0 {
			return false
		}
	}
	return true
}

func tagsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func formatRules(rules []types.Rule) string {
	var keys []string
	for _, r := range rules {
		keys = append(keys, r.Key())
	}
	sort.Strings(keys)
	return strings.Join(keys, "; ")
}

func formatTags(tags map[string]string) string {
	var parts []string
	for k, v := range tags {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietdv277/stratus/internal/state"
	"github.com/vietdv277/stratus/pkg/types"
)

// ApplyResult summarizes an executed plan.
type ApplyResult struct {
	Applied int
	Outputs map[string]string
}

// Apply executes a plan. Steps run in dependency order: doomed
// instances are terminated first, then replaced security groups are
// deleted so their names are free for re-creation, then groups are
// created or synced, then instances are launched or updated, then
// groups dropped from the bundle are deleted, once instance updates
// have detached them, and finally outputs are resolved. State is
// persisted after every step.
func (e *Engine) Apply(ctx context.Context, p *Plan) (*ApplyResult, error) {
	result := &ApplyResult{Outputs: make(map[string]string)}

	if err := e.terminateDoomedInstances(ctx, p, result); err != nil {
		return result, err
	}
	if err := e.deleteGroups(ctx, p, result, ActionReplace); err != nil {
		return result, err
	}
	if err := e.applyGroups(ctx, p, result); err != nil {
		return result, err
	}
	if err := e.applyInstances(ctx, p, result); err != nil {
		return result, err
	}
	if err := e.deleteGroups(ctx, p, result, ActionDelete); err != nil {
		return result, err
	}
	if err := e.resolveOutputs(); err != nil {
		return result, err
	}

	return result, nil
}

// terminateDoomedInstances removes instances planned for delete or
// replace. Replaced instances are re-created by applyInstances.
func (e *Engine) terminateDoomedInstances(ctx context.Context, p *Plan, result *ApplyResult) error {
	for _, c := range p.Changes {
		if c.Kind != state.KindInstance || (c.Action != ActionDelete && c.Action != ActionReplace) {
			continue
		}

		if r := e.state.Get(state.KindInstance, c.Name); r != nil {
			if err := e.cloud.Instances().Terminate(ctx, r.ID); err != nil {
				return err
			}
		}
		e.state.Remove(state.KindInstance, c.Name)
		if err := e.persist(); err != nil {
			return err
		}

		if c.Action == ActionDelete {
			result.Applied++
		}
	}
	return nil
}

// deleteGroups removes security groups planned for the given action.
// Replaced groups are deleted before re-creation; their instances were
// terminated already. Dropped groups are deleted only after instance
// updates have detached them, or the delete would hit a dependency
// violation and leave the group wedged in state.
func (e *Engine) deleteGroups(ctx context.Context, p *Plan, result *ApplyResult, action Action) error {
	for _, c := range p.Changes {
		if c.Kind != state.KindSecurityGroup || c.Action != action {
			continue
		}

		if r := e.state.Get(state.KindSecurityGroup, c.Name); r != nil {
			if err := e.cloud.SecurityGroups().Delete(ctx, r.ID); err != nil {
				return err
			}
		}
		e.state.Remove(state.KindSecurityGroup, c.Name)
		if err := e.persist(); err != nil {
			return err
		}

		if c.Action == ActionDelete {
			result.Applied++
		}
	}
	return nil
}

// applyGroups creates missing security groups and syncs rules on the
// ones updated in place.
func (e *Engine) applyGroups(ctx context.Context, p *Plan, result *ApplyResult) error {
	var vpc *types.VPC

	for _, c := range p.Changes {
		if c.Kind != state.KindSecurityGroup {
			continue
		}

		sg := e.bundle.FindSecurityGroup(c.Name)

		switch c.Action {
		case ActionCreate, ActionReplace:
			if vpc == nil {
				var err error
				vpc, err = e.cloud.Network().DefaultVPC(ctx)
				if err != nil {
					return err
				}
			}

			id, err := e.cloud.SecurityGroups().Create(ctx, sg.Spec(vpc.ID))
			if err != nil {
				if id != "" {
					// The group exists even though rule sync failed;
					// track it so the next apply can repair it.
					e.state.Put(groupResource(c.Name, id, vpc.ID, sg.Description))
					if perr := e.persist(); perr != nil {
						return errors.Join(err, perr)
					}
				}
				return err
			}

			e.state.Put(groupResource(c.Name, id, vpc.ID, sg.Description))
			if err := e.persist(); err != nil {
				return err
			}
			result.Applied++

		case ActionUpdate:
			r := e.state.Get(state.KindSecurityGroup, c.Name)
			if r == nil {
				return fmt.Errorf("security group %q is planned for update but not tracked in state", c.Name)
			}
			if err := e.cloud.SecurityGroups().SyncRules(ctx, r.ID, sg.Spec(r.Attributes["vpc_id"])); err != nil {
				return err
			}
			if err := e.persist(); err != nil {
				return err
			}
			result.Applied++
		}
	}

	return nil
}

// applyInstances launches created or replaced instances and applies
// in-place updates to the rest.
func (e *Engine) applyInstances(ctx context.Context, p *Plan, result *ApplyResult) error {
	for _, c := range p.Changes {
		if c.Kind != state.KindInstance {
			continue
		}

		in := e.bundle.FindInstance(c.Name)

		switch c.Action {
		case ActionCreate, ActionReplace:
			if in.KeyName != "" {
				exists, err := e.cloud.Network().KeyPairExists(ctx, in.KeyName)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("key pair %q does not exist; create it before applying", in.KeyName)
				}
			}

			groupIDs, err := e.trackedGroupIDs(in.SecurityGroups)
			if err != nil {
				return err
			}
			groupIDs = append(groupIDs, in.SecurityGroupIDs...)

			inst, err := e.cloud.Instances().Launch(ctx, in.Spec(groupIDs))
			if err != nil {
				return err
			}

			e.state.Put(instanceResource(c.Name, inst))
			if err := e.persist(); err != nil {
				return err
			}
			result.Applied++

		case ActionUpdate:
			r := e.state.Get(state.KindInstance, c.Name)
			if r == nil {
				return fmt.Errorf("instance %q is planned for update but not tracked in state", c.Name)
			}

			for _, d := range c.Diffs {
				switch d.Attribute {
				case "tags":
					if err := e.cloud.Instances().UpdateTags(ctx, r.ID, withNameTag(in)); err != nil {
						return err
					}
				case "security_groups":
					groupIDs, err := e.trackedGroupIDs(in.SecurityGroups)
					if err != nil {
						return err
					}
					groupIDs = append(groupIDs, in.SecurityGroupIDs...)
					if err := e.cloud.Instances().UpdateSecurityGroups(ctx, r.ID, groupIDs); err != nil {
						return err
					}
				}
			}

			// Re-describe so recorded attributes reflect the update.
			inst, err := e.cloud.Instances().Get(ctx, r.ID)
			if err != nil {
				return err
			}
			e.state.Put(instanceResource(c.Name, inst))
			if err := e.persist(); err != nil {
				return err
			}
			result.Applied++
		}
	}

	return nil
}

// trackedGroupIDs resolves bundle-declared group references to the IDs
// tracked in state. By this point every referenced group has been
// created, so a miss is an internal error.
func (e *Engine) trackedGroupIDs(refs []string) ([]string, error) {
	var ids []string
	for _, ref := range refs {
		r := e.state.Get(state.KindSecurityGroup, ref)
		if r == nil {
			return nil, fmt.Errorf("security group %q is not tracked in state", ref)
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func groupResource(name, id, vpcID, description string) state.Resource {
	return state.Resource{
		Kind: state.KindSecurityGroup,
		Name: name,
		ID:   id,
		Attributes: map[string]string{
			"vpc_id":      vpcID,
			"description": description,
		},
	}
}

func instanceResource(name string, inst *types.Instance) state.Resource {
	return state.Resource{
		Kind: state.KindInstance,
		Name: name,
		ID:   inst.ID,
		Attributes: map[string]string{
			"ami":           inst.AMI,
			"instance_type": inst.Type,
			"key_name":      inst.KeyName,
			"az":            inst.AZ,
			"private_ip":    inst.PrivateIP,
			"public_ip":     inst.PublicIP,
			"public_dns":    inst.PublicDNS,
		},
	}
}

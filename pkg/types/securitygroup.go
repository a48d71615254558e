package types

import (
	"fmt"
	"sort"
	"strings"
)

// SecurityGroup represents a live security group.
type SecurityGroup struct {
	ID          string
	Name        string
	Description string
	VPCID       string
	Ingress     []Rule
	Egress      []Rule
}

// Rule is a single ingress or egress permission. CIDRBlocks is treated
// as a set; order is irrelevant when comparing rules.
type Rule struct {
	FromPort   int32
	ToPort     int32
	Protocol   string
	CIDRBlocks []string
}

// Key returns a canonical string for the rule, used for set comparison.
// CIDR blocks are sorted so equivalent rules produce identical keys.
func (r Rule) Key() string {
	cidrs := append([]string(nil), r.CIDRBlocks...)
	sort.Strings(cidrs)
	return fmt.Sprintf("%d-%d/%s/%s", r.FromPort, r.ToPort, r.Protocol, strings.Join(cidrs, ","))
}

// SecurityGroupSpec is the desired shape of a security group.
type SecurityGroupSpec struct {
	Name        string
	Description string
	VPCID       string
	Ingress     []Rule
	Egress      []Rule
}

package security

import (
	"context"
	"fmt"
	"strings"
)

const (
	wildcard      = "*"
	partDivider   = ":"
	subpartDivide = ","
)

// Policy grants a fixed set of wildcard permissions. A permission is a list of parts divided by
// ":", every part a list of alternatives divided by ",". A "*" part matches anything, and a
// permission with fewer parts than the checked right implies all of its extensions:
// "ui:component:view:*" and "ui:component:view" both grant "ui:component:view:semantic:map".
// Matching is case-insensitive.
type Policy struct {
	grants []permission
}

type permission [][]string

// NewPolicy parses the granted permissions.
func NewPolicy(grants []string) (*Policy, error) {
	p := &Policy{}
	for _, g := range grants {
		perm, err := parsePermission(g)
		if err != nil {
			return nil, err
		}
		p.grants = append(p.grants, perm)
	}
	return p, nil
}

// IsPermitted reports whether any grant implies right.
func (p *Policy) IsPermitted(ctx context.Context, right string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	req, err := parsePermission(right)
	if err != nil {
		return false, err
	}
	for _, g := range p.grants {
		if g.implies(req) {
			return true, nil
		}
	}
	return false, nil
}

func parsePermission(s string) (permission, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, fmt.Errorf("parse permission: empty string")
	}
	var perm permission
	for _, part := range strings.Split(s, partDivider) {
		var subparts []string
		for _, sp := range strings.Split(part, subpartDivide) {
			if sp = strings.TrimSpace(sp); sp != "" {
				subparts = append(subparts, sp)
			}
		}
		if len(subparts) == 0 {
			return nil, fmt.Errorf("parse permission %q: empty part", s)
		}
		perm = append(perm, subparts)
	}
	return perm, nil
}

func (p permission) implies(other permission) bool {
	for i, part := range p {
		if i >= len(other) {
			// Remaining parts must be wildcards.
			if !contains(part, wildcard) {
				return false
			}
			continue
		}
		if contains(part, wildcard) {
			continue
		}
		for _, sp := range other[i] {
			if !contains(part, sp) {
				return false
			}
		}
	}
	return true
}

func contains(part []string, s string) bool {
	for _, p := range part {
		if p == s {
			return true
		}
	}
	return false
}

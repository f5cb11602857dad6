package markup

import (
	"context"
	"strings"
)

// ComponentRightPrefix prefixes the permission right checked before a component is rendered.
const ComponentRightPrefix = "ui:component:view:"

// SecurityService checks permission rights of the current user.
type SecurityService interface {
	IsPermitted(ctx context.Context, right string) (bool, error)
}

// ConfigHolder exposes the configuration the permission gate depends on.
type ConfigHolder interface {
	EnableUIComponentBasedSecurity() bool
}

// Gate decides whether a component tag may be rendered. Decisions are never cached.
type Gate struct {
	config   ConfigHolder
	security SecurityService
}

// NewGate returns a gate. A nil config disables component security.
func NewGate(config ConfigHolder, security SecurityService) *Gate {
	return &Gate{config: config, security: security}
}

// IsComponentPermitted reports whether tag may be rendered. With component security disabled it
// returns true without consulting the security service.
func (g *Gate) IsComponentPermitted(ctx context.Context, tag string) (bool, error) {
	if g == nil || g.config == nil || !g.config.EnableUIComponentBasedSecurity() {
		return true, nil
	}
	if g.security == nil {
		return false, ErrNoSecurityService
	}
	return g.security.IsPermitted(ctx, ComponentRight(tag))
}

// ComponentRight returns the permission right guarding tag, e.g. "ui:component:view:semantic:map"
// for semantic-map.
func ComponentRight(tag string) string {
	return ComponentRightPrefix + strings.ReplaceAll(tag, "-", ":")
}

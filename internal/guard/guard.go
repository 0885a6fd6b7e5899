// Package guard holds the role and suspension predicates composed at the top
// of every ledger operation. Each predicate checks exactly one condition so
// the authorization policy of an operation is readable at its call site.
package guard

import (
	"context"
	"fmt"

	"github.com/quantapay/payrolld/internal/models"
	"github.com/quantapay/payrolld/internal/repository"
)

type Guard struct {
	admin    string
	settings repository.SettingsRepoIface
}

// New creates a Guard bound to the configured administrator identity.
func New(admin string, settings repository.SettingsRepoIface) *Guard {
	return &Guard{admin: admin, settings: settings}
}

// Admin returns the administrator account funds are swept to.
func (g *Guard) Admin() string {
	return g.admin
}

// RequireAdmin fails unless the caller is the configured administrator.
func (g *Guard) RequireAdmin(caller string) error {
	if caller != g.admin {
		return models.ErrNotAdmin
	}
	return nil
}

// RequireOracle fails unless the caller is the currently configured oracle.
func (g *Guard) RequireOracle(ctx context.Context, caller string) error {
	settings, err := g.settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve oracle identity: %w", err)
	}
	if caller != settings.OracleAccount {
		return models.ErrNotOracle
	}
	return nil
}

// RequireLive fails while operations are suspended.
func (g *Guard) RequireLive(ctx context.Context) error {
	settings, err := g.settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve suspension state: %w", err)
	}
	if settings.Suspended {
		return models.ErrSuspended
	}
	return nil
}

// RequireSuspended fails unless operations are suspended. Resume and the
// emergency sweep are the only operations allowed in that state.
func (g *Guard) RequireSuspended(ctx context.Context) error {
	settings, err := g.settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve suspension state: %w", err)
	}
	if !settings.Suspended {
		return models.ErrNotSuspended
	}
	return nil
}

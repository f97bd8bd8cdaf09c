package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

type SeedCmd struct {
	Org   string `help:"Organization id" required:""`
	User  string `help:"User id acting as the organization admin" required:""`
	Email string `help:"Email recorded on the membership and activity log"`
}

func (s *SeedCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := loadApp(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx = tenant.WithPrincipal(ctx, tenant.Principal{UserID: s.User, Email: s.Email})
	ctx = tenant.WithOrg(ctx, s.Org)
	summary, err := app.Seed.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seeding %s: %w", s.Org, err)
	}

	kinds := make([]string, 0, len(summary.Written))
	for kind := range summary.Written {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(globals.Out, "%-12s %d\n", kind, summary.Written[domain.EntityKind(kind)])
	}
	return nil
}

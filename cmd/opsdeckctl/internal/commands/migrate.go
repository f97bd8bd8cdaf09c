package commands

import (
	"context"
	"fmt"
)

type MigrateCmd struct{}

func (m *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := loadApp(ctx, globals)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintf(globals.Out, "%s store is up to date\n", app.Config.Store.Driver)
	return nil
}

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/thpsrun/website-sub000/db/bundb"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					d, err := setup(c)
					if err != nil {
						return err
					}
					defer d.Close()

					if err := bundb.NewMigrator(d.dbService.GetDB()).Init(c.Context); err != nil {
						return fmt.Errorf("failed to initialize migration tables: %w", err)
					}
					fmt.Fprintln(c.App.Writer, "Migration tables created")
					return nil
				},
			},
			{
				Name:  "migrate",
				Usage: "apply the queue schema and every pending migration",
				Action: func(c *cli.Context) error {
					d, err := setup(c)
					if err != nil {
						return err
					}
					defer d.Close()

					group, err := bundb.Migrate(c.Context, d.dbService.GetDB(), d.cfg.Postgres.DSN, d.obs.Provider.Logger)
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Fprintln(c.App.Writer, "No new migrations to run")
					} else {
						fmt.Fprintf(c.App.Writer, "Migrated to %s\n", group)
					}
					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group",
				Action: func(c *cli.Context) error {
					d, err := setup(c)
					if err != nil {
						return err
					}
					defer d.Close()

					group, err := bundb.NewMigrator(d.dbService.GetDB()).Rollback(c.Context)
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Fprintln(c.App.Writer, "No groups to roll back")
					} else {
						fmt.Fprintf(c.App.Writer, "Rolled back %s\n", group)
					}
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: func(c *cli.Context) error {
					d, err := setup(c)
					if err != nil {
						return err
					}
					defer d.Close()

					ms, err := bundb.NewMigrator(d.dbService.GetDB()).MigrationsWithStatus(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Migrations: %s\n", ms)
					fmt.Fprintf(c.App.Writer, "  Applied: %s\n", ms.Applied())
					fmt.Fprintf(c.App.Writer, "  Unapplied: %s\n", ms.Unapplied())
					return nil
				},
			},
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ruslano69/tdtp-migrator/pkg/adapters"
	"github.com/ruslano69/tdtp-migrator/pkg/config"
	"github.com/ruslano69/tdtp-migrator/pkg/schema"
)

// openIntrospector подключается к профилю (по умолчанию - назначение).
// Пустая схема заменяется схемой профиля.
func openIntrospector(ctx context.Context, cfg *config.Config, profile string, schemaName *string) (*schema.Introspector, *adapters.Registry, error) {
	if profile == "" {
		profile = cfg.Destination.Profile
	}
	if profile == "" {
		return nil, nil, errors.New("--profile is required (no destination.profile in config)")
	}
	reg := adapters.NewRegistry(cfg.Profiles)
	a, err := reg.Get(ctx, profile)
	if err != nil {
		reg.Close()
		return nil, nil, fmt.Errorf("profile %q: %w", profile, err)
	}
	if *schemaName == "" {
		*schemaName = a.Config().Schema
	}
	return schema.NewIntrospector(a.DB(), a.Dialect()), reg, nil
}

func runTables(ctx context.Context, args []string) error {
	fs, common := newFlagSet("tables")
	profile := fs.String("profile", "", "connection profile (default: destination)")
	schemaName := fs.String("schema", "", "schema (default: profile or dialect default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogging(common)

	cfg, err := config.Load(*common.Config)
	if err != nil {
		return err
	}
	in, reg, err := openIntrospector(ctx, cfg, *profile, schemaName)
	if err != nil {
		return err
	}
	defer reg.Close()

	tables, err := in.ListTables(ctx, *schemaName)
	if err != nil {
		return err
	}
	for _, t := range tables {
		fmt.Println(t)
	}
	fmt.Printf("\nTotal: %d tables\n", len(tables))
	return nil
}

func runColumns(ctx context.Context, args []string) error {
	fs, common := newFlagSet("columns")
	profile := fs.String("profile", "", "connection profile (default: destination)")
	schemaName := fs.String("schema", "", "schema (default: profile or dialect default)")
	table := fs.String("table", "", "table name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogging(common)
	if *table == "" {
		return errors.New("--table is required")
	}

	cfg, err := config.Load(*common.Config)
	if err != nil {
		return err
	}
	in, reg, err := openIntrospector(ctx, cfg, *profile, schemaName)
	if err != nil {
		return err
	}
	defer reg.Close()

	cols, err := in.DescribeColumns(ctx, *schemaName, *table)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tTYPE\tKIND\tNULL\tDEFAULT\tAUTO\tREQUIRED")
	for _, c := range cols {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Name, c.TypeName, c.Kind, yesNo(c.Nullable), yesNo(c.HasDefault),
			yesNo(c.AutoIncrement || c.Generated), yesNo(c.IsRequiredInput()))
	}
	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/tdtp-migrator/pkg/config"
	"github.com/ruslano69/tdtp-migrator/pkg/runner"
	"github.com/ruslano69/tdtp-migrator/pkg/security"
)

// loadJob читает YAML-задание; пустые профили берутся из конфигурации
func loadJob(path string, cfg *config.Config) (runner.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return runner.Job{}, fmt.Errorf("failed to read job file: %w", err)
	}
	var job runner.Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return runner.Job{}, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	if job.Source == "" {
		job.Source = cfg.Source
	}
	if job.Destination == "" {
		job.Destination = cfg.Destination.Profile
	}
	if len(job.Mappings) == 0 {
		job.Mappings = cfg.Destination.Mappings
	}
	return job, nil
}

func runJob(ctx context.Context, args []string) error {
	fs, common := newFlagSet("run")
	jobPath := fs.String("job", "", "path to job YAML")
	dryRun := fs.Bool("dry-run", false, "describe statements, write nothing")
	unsafe := fs.Bool("unsafe-sql", false, "allow non-SELECT source SQL (administrators only)")
	limit := fs.Int("limit", 0, "limit source rows (0 = job value)")
	asJSON := fs.Bool("json", false, "print summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogging(common)
	if *jobPath == "" {
		return errors.New("--job is required")
	}

	validator, err := security.ValidatorFor(*unsafe)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*common.Config)
	if err != nil {
		return err
	}
	job, err := loadJob(*jobPath, cfg)
	if err != nil {
		return err
	}
	if *dryRun {
		job.DryRun = true
	}
	if *limit > 0 {
		job.Limit = *limit
	}

	inf, err := setup(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer inf.Close()

	r := runner.New(inf.registry, cfg.SinkOptions(), validator, runner.NewLog(0))
	sum, err := r.Run(ctx, job)
	if err != nil {
		return err
	}
	printSummary(sum, *asJSON)
	if sum.Fail > 0 {
		return fmt.Errorf("%d of %d rows failed", sum.Fail, sum.Total)
	}
	return nil
}

func printSummary(sum runner.Summary, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(sum)
		return
	}
	for _, m := range sum.Messages {
		fmt.Println(m)
	}
	mode := ""
	if sum.DryRun {
		mode = " (dry run)"
	}
	fmt.Printf("\nTotal: %d  OK: %d  Failed: %d%s\n", sum.Total, sum.OK, sum.Fail, mode)
}

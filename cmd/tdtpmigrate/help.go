package main

import "fmt"

const version = "1.0.0"

// PrintVersion prints version information
func PrintVersion() {
	fmt.Printf("tdtpmigrate version %s\n", version)
	fmt.Println("TDTP Migrator - legacy schema row migration")
}

// PrintHelp prints usage
func PrintHelp() {
	fmt.Println("TDTP Migrator - legacy schema row migration")
	fmt.Printf("Version: %s\n\n", version)

	fmt.Println("USAGE:")
	fmt.Println("  tdtpmigrate <command> [options]")
	fmt.Println()

	fmt.Println("COMMANDS:")
	fmt.Println("  serve                      Start HTTP API (sessions, jobs, preview)")
	fmt.Println("  run --job <file>           Run a batch job from YAML")
	fmt.Println("  tables                     List destination tables")
	fmt.Println("  columns --table <name>     Describe destination table columns")
	fmt.Println("  version                    Show version")
	fmt.Println()

	fmt.Println("COMMON OPTIONS:")
	fmt.Println("  --config <file>            Config file (default: migrator.yaml)")
	fmt.Println("  --log-json                 JSON logs")
	fmt.Println("  --verbose                  Debug logs")
	fmt.Println()

	fmt.Println("SERVE OPTIONS:")
	fmt.Println("  --addr <host:port>         Override server.addr")
	fmt.Println("  --dev                      In-process miniredis for the result log")
	fmt.Println()

	fmt.Println("RUN OPTIONS:")
	fmt.Println("  --dry-run                  Describe statements, write nothing")
	fmt.Println("  --unsafe-sql               Allow non-SELECT source SQL (administrators only)")
	fmt.Println("  --limit <n>                Limit source rows")
	fmt.Println("  --json                     Print summary as JSON")
	fmt.Println()

	fmt.Println("ENVIRONMENT:")
	fmt.Println("  MIGRATOR_<PROFILE>_DSN     DSN for a connection profile")
	fmt.Println("  MIGRATOR_REDIS_PASSWORD    Redis password for the result log")
}

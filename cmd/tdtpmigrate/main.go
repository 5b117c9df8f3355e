// tdtpmigrate - перенос строк из унаследованной реляционной схемы в новую.
//
// Usage:
//
//	tdtpmigrate serve   [--config path] [--addr :8080] [--dev]
//	tdtpmigrate run     --job job.yaml [--dry-run] [--unsafe-sql]
//	tdtpmigrate tables  [--profile name] [--schema s]
//	tdtpmigrate columns --table t [--profile name] [--schema s]
//
// Environment:
//
//	MIGRATOR_<PROFILE>_DSN   DSN профиля подключения (перекрывает файл)
//	MIGRATOR_REDIS_PASSWORD  пароль Redis для журнала результатов
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/ruslano69/tdtp-migrator/pkg/adapters/mssql"
	_ "github.com/ruslano69/tdtp-migrator/pkg/adapters/mysql"
	_ "github.com/ruslano69/tdtp-migrator/pkg/adapters/postgres"
	_ "github.com/ruslano69/tdtp-migrator/pkg/adapters/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		PrintHelp()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, args)
	case "run":
		err = runJob(ctx, args)
	case "tables":
		err = runTables(ctx, args)
	case "columns":
		err = runColumns(ctx, args)
	case "version", "--version", "-v":
		PrintVersion()
	case "help", "--help", "-h":
		PrintHelp()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		PrintHelp()
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("failed")
		os.Exit(1)
	}
}

// commonFlags - флаги, общие для всех подкоманд
type commonFlags struct {
	Config  *string
	LogJSON *bool
	Verbose *bool
}

func newFlagSet(name string) (*flag.FlagSet, commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return fs, commonFlags{
		Config:  fs.String("config", "migrator.yaml", "path to config file"),
		LogJSON: fs.Bool("log-json", false, "JSON log output instead of console"),
		Verbose: fs.Bool("verbose", false, "debug logging"),
	}
}

// setupLogging: консоль для человека, JSON для сборщика логов
func setupLogging(c commonFlags) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *c.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *c.LogJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// Command migrate applies or rolls back the EventHub database schema.
//
//	migrate [-seed=false] [-dir path] up|down|version|to <n>
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"ms-events/internal/config"
	"ms-events/internal/database/migrations"
	"ms-events/internal/logger"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate [flags] up|down|version|to <version>")
	flag.PrintDefaults()
}

func main() {
	_ = godotenv.Load()

	var dbCfg config.DatabaseConfig
	if err := env.Parse(&dbCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := migrations.DefaultOptions()
	flag.StringVar(&dbCfg.DSN, "dsn", dbCfg.DSN, "PostgreSQL connection string")
	flag.StringVar(&opts.MigrationsDir, "dir", dbCfg.MigrationsDir, "read migrations from this directory instead of the embedded set")
	flag.BoolVar(&opts.SeedData, "seed", dbCfg.SeedData, "include seed migrations when running up")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	log := logger.NewWriterLogger(os.Stdout)
	runner := migrations.NewRunner(dbCfg.DSN, opts, log)

	err := run(runner, flag.Args())
	if closeErr := runner.Close(); closeErr != nil {
		log.Warn("MIGRATION", closeErr.Error())
	}
	if err != nil {
		log.Error("MIGRATION", err.Error())
		os.Exit(1)
	}
	log.Info("MIGRATION", "Done")
}

func run(runner *migrations.Runner, args []string) error {
	switch args[0] {
	case "up":
		return runner.RunMigrations()
	case "down":
		return runner.MigrateDown()
	case "version":
		version, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		return nil
	case "to":
		if len(args) < 2 {
			return fmt.Errorf("to requires a version")
		}
		version, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return runner.MigrateTo(uint(version))
	}
	return fmt.Errorf("unknown command %q", args[0])
}

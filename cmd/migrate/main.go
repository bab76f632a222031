// Command migrate applies the embedded schema migrations to the configured
// Postgres database and exits; it does not start the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ragdocs/docuqa/internal/config"
	"github.com/ragdocs/docuqa/internal/store/migrations"
)

func main() {
	dsnFlag := flag.String("dsn", "", "Postgres DSN (overrides DB_DSN)")
	flag.Parse()

	dsn := *dsnFlag
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		dsn = cfg.Database.DSN
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "no DSN configured: pass -dsn or set DB_DSN")
		os.Exit(1)
	}

	if err := migrations.Apply(context.Background(), dsn); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("migrations applied")
}

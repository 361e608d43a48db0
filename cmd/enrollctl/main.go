// Command enrollctl runs administrative jobs against the enrollment database:
// quarter requirement generation, the overdue sweep and development tokens.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment-api/internal/repository"
	"github.com/noah-isme/sis-enrollment-api/internal/service"
	"github.com/noah-isme/sis-enrollment-api/pkg/config"
	"github.com/noah-isme/sis-enrollment-api/pkg/database"
	"github.com/noah-isme/sis-enrollment-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli{
		out:    os.Stdout,
		tokens: service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Expiration: cfg.JWT.Expiration}),
		quarters: func(ctx context.Context) (quarterJobs, func(), error) {
			return openQuarterService(ctx, cfg, logr)
		},
	}
	if err := app.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "enrollctl:", err)
		os.Exit(1)
	}
}

func openQuarterService(ctx context.Context, cfg *config.Config, logr *zap.Logger) (quarterJobs, func(), error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	svc := service.NewQuarterService(db, repository.NewQuarterRepository(db), repository.NewAccountRepository(db), logr,
		service.WithQuarterPolicy(service.NewPaymentPolicy(cfg.Workflow.RequiredPaymentPercent)),
	)
	return svc, func() { _ = db.Close() }, nil
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: enrollctl <command> [flags]

commands:
  generate-requirements -quarter <id>   snapshot balances into quarter requirements
  overdue [-mark]                       list unmet requirements past their deadline
  token -user <id> -role <ROLE>         print a signed bearer token
`)
}

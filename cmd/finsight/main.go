package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/smallbiznis/finsight/internal/account"
	"github.com/smallbiznis/finsight/internal/alert"
	"github.com/smallbiznis/finsight/internal/analytics"
	"github.com/smallbiznis/finsight/internal/audit"
	"github.com/smallbiznis/finsight/internal/auth"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/config"
	"github.com/smallbiznis/finsight/internal/errclass"
	"github.com/smallbiznis/finsight/internal/institution"
	"github.com/smallbiznis/finsight/internal/observability"
	"github.com/smallbiznis/finsight/internal/organization"
	"github.com/smallbiznis/finsight/internal/ratelimit"
	"github.com/smallbiznis/finsight/internal/report"
	"github.com/smallbiznis/finsight/internal/seed"
	"github.com/smallbiznis/finsight/internal/transaction"
	"github.com/smallbiznis/finsight/internal/user"
	"github.com/smallbiznis/finsight/pkg/db"
	"github.com/smallbiznis/finsight/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const startTimeout = 30 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}

	opts, err := cmd.parse(args[1:], stderr)
	if err != nil {
		return 2
	}

	var c cli
	fxOpts := append(coreModules(),
		fx.Populate(cmd.deps(&c)...),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
	)
	fxOpts = append(fxOpts, cmd.modules...)
	app := fx.New(fxOpts...)

	startCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(stderr, "start: %v\n", err)
		return errclass.ExitCode(err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	if err := cmd.run(context.Background(), c, opts, stdout); err != nil {
		class := errclass.Classify(err)
		fmt.Fprintf(stderr, "%s: %v\n", class.Code, err)
		return errclass.ExitCode(err)
	}
	return 0
}

func coreModules() []fx.Option {
	return []fx.Option{
		config.Module,
		observability.Module,
		clock.Module,
		db.Module,
		repository.Module,
		audit.Module,
		authorization.Module,
		ratelimit.Module,
		auth.Module,
		seed.Module,
		organization.Module,
		user.Module,
		institution.Module,
		account.Module,
		transaction.Module,
		analytics.Module,
		report.Module,
		alert.Module,
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: finsight <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].summary)
	}
}

var errUsage = errors.New("usage")

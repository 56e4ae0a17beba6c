package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	auditdomain "github.com/smallbiznis/finsight/internal/audit/domain"
	authdomain "github.com/smallbiznis/finsight/internal/auth/domain"
	"github.com/smallbiznis/finsight/internal/authorization"
	"github.com/smallbiznis/finsight/internal/migration"
	orgdomain "github.com/smallbiznis/finsight/internal/organization/domain"
	"github.com/smallbiznis/finsight/internal/orgcontext"
	"github.com/smallbiznis/finsight/internal/scheduler"
	"github.com/smallbiznis/finsight/internal/seed"
	"github.com/smallbiznis/finsight/pkg/db/pagination"
	"go.uber.org/fx"
)

// cli holds what a command pulls out of the container. A command populates only
// the fields it uses.
type cli struct {
	Seeder *seed.Seeder
	Sched  *scheduler.Scheduler
	Authz  authorization.Service
	Auth   authdomain.Service
	Audit  auditdomain.Service
	Orgs   orgdomain.Service
}

type options struct {
	role     string
	action   string
	email    string
	password string
	token    string
	limit    int
	filter   string
}

type command struct {
	summary string
	// modules are added to the core container for this command only.
	modules []fx.Option
	flags   func(fs *flag.FlagSet, o *options)
	check   func(o *options) error
	deps    func(c *cli) []any
	run     func(ctx context.Context, c cli, o *options, out io.Writer) error
}

var commandOrder = []string{"migrate", "seed", "authorize", "login", "whoami", "org", "audit-tail", "expire-runs", "worker"}

var commands = map[string]*command{
	"migrate": {
		summary: "apply schema migrations and run the bootstrap seed",
		modules: []fx.Option{migration.Module},
		deps:    func(c *cli) []any { return nil },
		run: func(ctx context.Context, c cli, o *options, out io.Writer) error {
			fmt.Fprintln(out, "migrations applied")
			return nil
		},
	},
	"seed": {
		summary: "create the default organization and administrator",
		deps:    func(c *cli) []any { return []any{&c.Seeder} },
		run: func(ctx context.Context, c cli, o *options, out io.Writer) error {
			res, err := c.Seeder.Run(ctx)
			if err != nil {
				return err
			}
			return writeJSON(out, res)
		},
	},
	"authorize": {
		summary: "report whether a role grants an action",
		flags: func(fs *flag.FlagSet, o *options) {
			fs.StringVar(&o.role, "role", "", "role name")
			fs.StringVar(&o.action, "action", "", "action name")
		},
		check: func(o *options) error { return required(map[string]string{"role": o.role, "action": o.action}) },
		deps:  func(c *cli) []any { return []any{&c.Authz} },
		run: func(ctx context.Context, c cli, o *options, out io.Writer) error {
			allowed, err := c.Authz.Authorize(o.role, o.action)
			if err != nil {
				return err
			}
			if !allowed {
				fmt.Fprintln(out, "denied")
				return authorization.ErrForbidden
			}
			fmt.Fprintln(out, "allowed")
			return nil
		},
	},
	"login": {
		summary: "exchange email and password for a bearer token",
		flags: func(fs *flag.FlagSet, o *options) {
			fs.StringVar(&o.email, "email", "", "user email")
			fs.StringVar(&o.password, "password", os.Getenv("FINSIGHT_PASSWORD"), "password (default $FINSIGHT_PASSWORD)")
		},
		check: func(o *options) error { return required(map[string]string{"email": o.email, "password": o.password}) },
		deps:  func(c *cli) []any { return []any{&c.Auth} },
		run: func(ctx context.Context, c cli, o *options, out io.Writer) error {
			session, err := c.Auth.Login(ctx, o.email, o.password)
			if err != nil {
				return err
			}
			return writeJSON(out, session)
		},
	},
	"whoami": {
		summary: "show the principal behind a token",
		flags:   tokenFlag,
		check:   requireToken,
		deps:    func(c *cli) []any { return []any{&c.Auth} },
		run: func(ctx context.Context, c cli, o *options, out io.Writer) error {
			pctx, err := c.Auth.Authenticate(ctx, o.token)
			if err != nil {
				return err
			}
			return writeJSON(out, principalOf(pctx))
		},
	},
	"org": {
		summary: "show the organization of a token",
		flags:   tokenFlag,
		check:   requireToken,
		deps:    func(c *cli) []any { return []any{&c.Auth, &c.Orgs} },
		run: func(ctx context.Context, c cli, o *options, out io.Writer) error {
			pctx, err := c.Auth.Authenticate(ctx, o.token)
			if err != nil {
				return err
			}
			org, err := c.Orgs.Get(pctx)
			if err != nil {
				return err
			}
			return writeJSON(out, org)
		},
	},
	"audit-tail": {
		summary: "print the newest audit entries of a token's organization",
		flags: func(fs *flag.FlagSet, o *options) {
			tokenFlag(fs, o)
			fs.IntVar(&o.limit, "limit", 20, "number of entries")
			fs.StringVar(&o.filter, "action", "", "only entries with this action")
		},
		check: requireToken,
		deps:  func(c *cli) []any { return []any{&c.Auth, &c.Audit} },
		run: func(ctx context.Context, c cli, o *options, out io.Writer) error {
			pctx, err := c.Auth.Authenticate(ctx, o.token)
			if err != nil {
				return err
			}
			resp, err := c.Audit.List(pctx, auditdomain.ListRequest{
				Pagination: pagination.Pagination{PageSize: o.limit},
				Action:     o.filter,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			for _, entry := range resp.AuditLogs {
				if err := enc.Encode(entry); err != nil {
					return err
				}
			}
			return nil
		},
	},
	"expire-runs": {
		summary: "fail analytics runs stuck in running once",
		modules: []fx.Option{fx.Provide(scheduler.New)},
		deps:    func(c *cli) []any { return []any{&c.Sched} },
		run: func(ctx context.Context, c cli, o *options, out io.Writer) error {
			if err := c.Sched.RunOnce(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "done")
			return nil
		},
	},
	"worker": {
		summary: "run the scheduled maintenance jobs until interrupted",
		modules: []fx.Option{scheduler.Module},
		deps:    func(c *cli) []any { return []any{&c.Sched} },
		run: func(ctx context.Context, c cli, o *options, out io.Writer) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	},
}

func (c *command) parse(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("finsight", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if c.flags != nil {
		c.flags(fs, o)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if c.check != nil {
		if err := c.check(o); err != nil {
			fmt.Fprintln(stderr, err)
			fs.Usage()
			return nil, err
		}
	}
	return o, nil
}

func tokenFlag(fs *flag.FlagSet, o *options) {
	fs.StringVar(&o.token, "token", os.Getenv("FINSIGHT_TOKEN"), "bearer token (default $FINSIGHT_TOKEN)")
}

func requireToken(o *options) error {
	return required(map[string]string{"token": o.token})
}

func required(values map[string]string) error {
	var missing []string
	for name, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: missing %s", errUsage, strings.Join(missing, ", "))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func principalOf(ctx context.Context) orgcontext.Principal {
	p, _ := orgcontext.PrincipalFromContext(ctx)
	return p
}

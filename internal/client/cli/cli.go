package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sanity-io/litter"

	"github.com/iudanet/canvassync/internal/client/iocli"
	"github.com/iudanet/canvassync/internal/config"
)

// ErrUsage неверные аргументы команды
var ErrUsage = errors.New("invalid usage")

// Options параметры запуска, не входящие в конфигурацию
type Options struct {
	// AllowDuplicate отключает блокировку похожих объектов при create
	AllowDuplicate bool
	// Debug печатает полные итоги операций
	Debug bool
}

type Cli struct {
	io      iocli.IO
	cfg     config.Config
	logger  *slog.Logger
	session *Session
	opts    Options
}

func New(io iocli.IO, cfg config.Config, logger *slog.Logger, opts Options) *Cli {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cli{io: io, cfg: cfg, logger: logger, opts: opts}
}

// Run выполняет одну команду. watch держит сессию до quit или EOF.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "help":
		PrintUsage(c.io)
		return nil
	case "register":
		return c.withSession(ctx, false, func() error { return c.runRegister(ctx) })
	case "login":
		return c.withSession(ctx, true, func() error { return c.runLogin(ctx) })
	case "logout":
		return c.withSession(ctx, true, func() error { return c.runLogout(ctx) })
	case "status":
		return c.withSession(ctx, true, func() error { return c.runStatus(ctx) })
	case "watch":
		return c.withOpenSession(ctx, func() error { return c.runWatch(ctx) })
	}

	if _, ok := canvasCommands[command]; !ok {
		PrintUsage(c.io)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, command)
	}
	return c.withOpenSession(ctx, func() error { return c.dispatch(ctx, command, args) })
}

// canvasCommands команды, работающие с холстом; доступны и в watch
var canvasCommands = map[string]func(c *Cli, ctx context.Context, args []string) error{
	"create":    (*Cli).runCreate,
	"update":    (*Cli).runUpdate,
	"move":      (*Cli).runMove,
	"resize":    (*Cli).runResize,
	"delete":    (*Cli).runDelete,
	"list":      (*Cli).runList,
	"pending":   (*Cli).runPending,
	"conflicts": (*Cli).runConflicts,
	"metrics":   (*Cli).runMetrics,
	"resolve":   (*Cli).runResolve,
	"retry":     (*Cli).runRetry,
	"cancel":    (*Cli).runCancel,
}

func (c *Cli) dispatch(ctx context.Context, command string, args []string) error {
	run, ok := canvasCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrUsage, command)
	}
	return run(c, ctx, args)
}

// withSession собирает стек без подключения к холсту
func (c *Cli) withSession(ctx context.Context, needPassphrase bool, fn func() error) error {
	if c.session != nil {
		return fn()
	}
	cfg := c.cfg
	if needPassphrase && cfg.Client.TokenPassphrase == "" {
		pass, err := c.io.ReadPassword("Token passphrase: ")
		if err != nil {
			return fmt.Errorf("failed to read passphrase: %w", err)
		}
		if pass == "" {
			return fmt.Errorf("passphrase cannot be empty (set %s to skip the prompt)", config.EnvTokenPassphrase)
		}
		cfg.Client.TokenPassphrase = pass
	}

	session, err := NewSession(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	c.session = session
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Error("failed to close session", "error", err)
		}
		c.session = nil
	}()
	return fn()
}

// withOpenSession дополнительно подключает холст
func (c *Cli) withOpenSession(ctx context.Context, fn func() error) error {
	return c.withSession(ctx, true, func() error {
		if err := c.session.Open(ctx); err != nil {
			return err
		}
		return fn()
	})
}

// dump печатает значение целиком в режиме --debug
func (c *Cli) dump(v any) {
	if !c.opts.Debug {
		return
	}
	c.io.Println(litter.Options{HidePrivateFields: true, StripPackageNames: true}.Sdump(v))
}

// PrintUsage справка по командам
func PrintUsage(out iocli.IO) {
	out.Println("CanvasSync Client")
	out.Println()
	out.Println("Usage:")
	out.Println("  canvassync [OPTIONS] COMMAND [ARGS]")
	out.Println()
	out.Println("Options:")
	out.Println("  --version                 Show version information")
	out.Println("  -c, --config PATH         Path to YAML config file")
	out.Println("  -s, --server URL          Server URL (default: http://localhost:8080)")
	out.Println("  --canvas ID               Canvas ID (default: default)")
	out.Println("  --db PATH                 Path to local database (default: canvassync-client.db)")
	out.Println("  --allow-duplicate         Create even if a similar object was just created")
	out.Println("  --debug                   Debug logging and full operation dumps")
	out.Println()
	out.Println("Token passphrase:")
	out.Println("  " + config.EnvTokenPassphrase + " environment variable, otherwise interactive prompt")
	out.Println()
	out.Println("Commands:")
	out.Println("  register                  Register new user")
	out.Println("  login                     Login to server")
	out.Println("  logout                    Logout and revoke the session")
	out.Println("  status                    Show authentication status")
	out.Println("  create <type> [k=v...]    Create object (rectangle, circle, text, heart, star, diamond, line, arrow)")
	out.Println("  update <id> k=v...        Change object properties (k=null removes a property)")
	out.Println("  move <id> <x> <y>         Move object")
	out.Println("  resize <id> <w> <h>       Resize object")
	out.Println("  delete <id>               Delete object")
	out.Println("  list                      List canvas objects")
	out.Println("  pending                   Show pending and failed updates")
	out.Println("  conflicts                 Show conflict history")
	out.Println("  metrics                   Show reconciliation metrics")
	out.Println("  watch                     Interactive session with live remote changes")
	out.Println()
	out.Println("Watch session commands:")
	out.Println("  any canvas command, plus")
	out.Println("  resolve <update-id> server|local   Settle a conflict awaiting a decision")
	out.Println("  retry                              Resend failed updates")
	out.Println("  cancel <update-id>                 Cancel a pending update")
	out.Println("  help, quit")
	out.Println()
	out.Println("Examples:")
	out.Println("  canvassync login")
	out.Println("  canvassync --canvas board-7 create rectangle x=10 y=20 width=100 height=50 fill=#ff0000")
	out.Println("  canvassync move 3f0c2a1e-6a77-4c39-9c43-0d8e2b7f1a55 120 80")
	out.Println("  canvassync --canvas board-7 watch")
}

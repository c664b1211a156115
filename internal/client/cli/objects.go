package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/reconcile"
)

// textProps значения этих свойств не разбираются как числа
var textProps = map[string]struct{}{
	models.PropFill:       {},
	models.PropStroke:     {},
	models.PropFontFamily: {},
	models.PropColor:      {},
	models.PropText:       {},
}

// parseProps разбирает аргументы вида key=value.
// null удаляет свойство, true/false и числа приводятся к типам.
func parseProps(args []string) (map[string]any, error) {
	props := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", ErrUsage, arg)
		}
		props[key] = parseValue(key, raw)
	}
	return props, nil
}

func parseValue(key, raw string) any {
	if _, ok := textProps[key]; ok {
		return raw
	}
	switch raw {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}

func parsePair(args []string, first, second string) (map[string]any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%w: expected <%s> <%s>", ErrUsage, first, second)
	}
	a, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", ErrUsage, first)
	}
	b, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", ErrUsage, second)
	}
	return map[string]any{first: a, second: b}, nil
}

func (c *Cli) runCreate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: create <type> [key=value...]", ErrUsage)
	}
	props, err := parseProps(args[1:])
	if err != nil {
		return err
	}
	return c.apply(ctx, reconcile.Intent{
		Type:           models.UpdateCreate,
		ObjectType:     models.ObjectType(args[0]),
		Payload:        props,
		AllowDuplicate: c.opts.AllowDuplicate,
	})
}

func (c *Cli) runUpdate(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: update <id> key=value...", ErrUsage)
	}
	props, err := parseProps(args[1:])
	if err != nil {
		return err
	}
	return c.apply(ctx, reconcile.Intent{Type: models.UpdateUpdate, ObjectID: args[0], Payload: props})
}

func (c *Cli) runMove(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: move <id> <x> <y>", ErrUsage)
	}
	props, err := parsePair(args[1:], models.PropX, models.PropY)
	if err != nil {
		return err
	}
	return c.apply(ctx, reconcile.Intent{Type: models.UpdateMove, ObjectID: args[0], Payload: props})
}

func (c *Cli) runResize(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: resize <id> <width> <height>", ErrUsage)
	}
	props, err := parsePair(args[1:], models.PropWidth, models.PropHeight)
	if err != nil {
		return err
	}
	return c.apply(ctx, reconcile.Intent{Type: models.UpdateResize, ObjectID: args[0], Payload: props})
}

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete <id>", ErrUsage)
	}
	return c.apply(ctx, reconcile.Intent{Type: models.UpdateDelete, ObjectID: args[0]})
}

// apply проводит намерение через оркестратор и печатает итог
func (c *Cli) apply(ctx context.Context, in reconcile.Intent) error {
	in.CanvasID = c.session.CanvasID()
	res := c.session.Orch.Reconcile(ctx, in)
	return c.report(in.Type, res)
}

func (c *Cli) report(op models.UpdateType, res reconcile.Result) error {
	c.dump(res)

	if res.Success {
		switch {
		case res.Deleted || res.Object == nil:
			c.io.Printf("✓ Deleted %s", res.ObjectID)
		case op == models.UpdateCreate:
			c.io.Printf("✓ Created %s %s (v%d)", res.Object.ObjectType, res.ObjectID, res.Object.Version)
		default:
			c.io.Printf("✓ Saved %s (v%d)", res.ObjectID, res.Object.Version)
		}
		c.io.Printf(" via %s in %s", res.Method, res.Elapsed.Round(time.Millisecond))
		if res.Resolution != "" {
			c.io.Printf(", conflict resolved: %s", res.Resolution)
		}
		if res.Unverified {
			c.io.Printf(", unverified")
		}
		c.io.Println()
		return nil
	}

	var dup *reconcile.DuplicateError
	if errors.As(res.Err, &dup) {
		c.io.Printf("Similar object: %s (similarity %.2f, confidence %s)\n",
			dup.Candidate.Object.ID, dup.Candidate.Similarity, dup.Candidate.Confidence)
		c.io.Println("Use --allow-duplicate to create it anyway")
	}
	var conflictErr *reconcile.ConflictError
	if errors.As(res.Err, &conflictErr) {
		c.io.Printf("Conflict %s on %s: %s\n", conflictErr.Conflict.Type, res.ObjectID, conflictErr.Conflict.Message)
		c.io.Printf("Decide with: resolve %s server|local\n", conflictErr.UpdateID)
	}
	return userFacing(res.Err)
}

// userFacing заменяет техническое сообщение пользовательским
func userFacing(err error) error {
	if err == nil {
		return errors.New("operation failed")
	}
	var ue reconcile.UserError
	if errors.As(err, &ue) {
		return fmt.Errorf("%s (%s)", ue.UserMessage(), ue.Code())
	}
	return err
}

func (c *Cli) runList(_ context.Context, _ []string) error {
	store := c.session.Orch.Store()
	objects := store.List(c.session.CanvasID())
	if len(objects) == 0 {
		c.io.Println("No objects")
		return nil
	}

	w := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tVERSION\tPROPERTIES")
	for _, obj := range objects {
		version := strconv.FormatInt(obj.Version, 10)
		if store.IsPending(obj.ID) {
			version += "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", obj.ID, obj.ObjectType, version, formatProps(obj.Properties))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	c.io.Printf("Total: %d\n", len(objects))
	c.dump(objects)
	return nil
}

// formatProps свойства в порядке ключей
func formatProps(props models.Properties) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, props[k]))
	}
	return strings.Join(parts, " ")
}

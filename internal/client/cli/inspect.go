package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/reconcile"
)

func (c *Cli) runPending(_ context.Context, _ []string) error {
	pending := c.session.Orch.GetPendingUpdates()
	failed := c.session.Orch.GetFailedUpdates()

	if len(pending) == 0 && len(failed) == 0 {
		c.io.Println("No pending updates")
		return nil
	}
	if len(pending) > 0 {
		c.io.Println("=== Pending ===")
		if err := c.printUpdates(pending); err != nil {
			return err
		}
	}
	if len(failed) > 0 {
		c.io.Println("=== Failed ===")
		if err := c.printUpdates(failed); err != nil {
			return err
		}
		c.io.Println("Run 'retry' in a watch session to resend them")
	}
	c.dump(append(pending, failed...))
	return nil
}

func (c *Cli) printUpdates(updates []*models.OptimisticUpdate) error {
	now := time.Now()
	w := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "UPDATE\tTYPE\tOBJECT\tSTATUS\tRETRIES\tAGE\tREASON")
	for _, u := range updates {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			u.ID, u.Type, u.ObjectID, u.Status, u.RetryCount, u.MaxRetries,
			now.Sub(u.Timestamp).Round(time.Millisecond), u.FailureReason)
	}
	return w.Flush()
}

func (c *Cli) runConflicts(_ context.Context, _ []string) error {
	history := c.session.Orch.GetConflictHistory()
	if len(history) == 0 {
		c.io.Println("No conflicts")
		return nil
	}

	w := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tTYPE\tSEVERITY\tRESOLUTION\tOBJECT\tFIELDS\tMESSAGE")
	for _, cf := range history {
		objectID := ""
		if cf.Update != nil {
			objectID = cf.Update.ObjectID
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			cf.Timestamp.Format(time.TimeOnly), cf.Type, cf.Severity, cf.Resolution,
			objectID, strings.Join(cf.ChangedFields, ","), cf.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	c.dump(history)
	return nil
}

func (c *Cli) runMetrics(_ context.Context, _ []string) error {
	m := c.session.Orch.GetMetrics()

	c.io.Println("=== Reconciliation ===")
	c.io.Printf("Total: %d\n", m.Total)
	for _, k := range sortedKeys(m.Outcomes) {
		c.io.Printf("  %-12s %d\n", k, m.Outcomes[k])
	}
	c.io.Printf("Average latency: %s\n", m.AverageLatency.Round(time.Millisecond))
	c.io.Printf("Unverified: %d\n", m.Unverified)
	c.io.Printf("Duplicates blocked: %d\n", m.DuplicatesBlocked)

	c.io.Println("=== Transport ===")
	methods := make(map[string]int64, len(m.Methods))
	for k, v := range m.Methods {
		methods[string(k)] = v
	}
	for _, k := range sortedKeys(methods) {
		c.io.Printf("  %-12s %d\n", k, methods[k])
	}

	c.io.Println("=== Queue ===")
	c.io.Printf("Pending: %d  Confirmed: %d  Failed: %d  Conflicted: %d  Cancelled: %d\n",
		m.Queue.Pending, m.Queue.Confirmed, m.Queue.Failed, m.Queue.Conflicted, m.Queue.Cancelled)
	if m.Queue.OldestPending > 0 {
		c.io.Printf("Oldest pending: %s\n", m.Queue.OldestPending.Round(time.Millisecond))
	}

	c.io.Println("=== Conflicts ===")
	c.io.Printf("Total: %d\n", m.Conflicts.Total)
	byType := make(map[string]int64, len(m.Conflicts.ByType))
	for k, v := range m.Conflicts.ByType {
		byType[string(k)] = v
	}
	for _, k := range sortedKeys(byType) {
		c.io.Printf("  %-18s %d\n", k, byType[k])
	}

	c.dump(m)
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Cli) runResolve(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: resolve <update-id> server|local", ErrUsage)
	}
	var choice reconcile.Choice
	switch args[1] {
	case "server":
		choice = reconcile.ChoiceAcceptServer
	case "local":
		choice = reconcile.ChoiceRetryLocal
	default:
		return fmt.Errorf("%w: choice must be server or local", ErrUsage)
	}

	res := c.session.Orch.ResolveManually(ctx, args[0], choice)
	op := models.UpdateUpdate
	if res.Object != nil && res.Object.Version == 1 {
		op = models.UpdateCreate
	}
	return c.report(op, res)
}

func (c *Cli) runRetry(ctx context.Context, _ []string) error {
	results := c.session.Orch.RetryFailed(ctx)
	if len(results) == 0 {
		c.io.Println("Nothing to retry")
		return nil
	}
	failed := 0
	for _, res := range results {
		if err := c.report(models.UpdateUpdate, res); err != nil {
			c.io.Printf("✗ %s: %v\n", res.ObjectID, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d updates failed again", failed, len(results))
	}
	return nil
}

func (c *Cli) runCancel(_ context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: cancel <update-id>", ErrUsage)
	}
	if err := c.session.Orch.Cancel(args[0]); err != nil {
		return err
	}
	c.io.Printf("✓ Cancelled %s\n", args[0])
	return nil
}

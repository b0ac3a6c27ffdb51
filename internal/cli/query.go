package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/contract"
	"github.com/roach88/timelock/internal/store"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <lock-id>",
		Short:         "Show one contract",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			f := rootOpts.formatter(cmd)
			c, err := e.query.Get(cmd.Context(), args[0])
			if err != nil {
				return f.Reject("get", err)
			}

			if f.Format == "json" {
				return f.Success(contract.Entry{ID: args[0], Contract: c})
			}
			rec, released, err := e.store.Release(cmd.Context(), args[0])
			if err != nil {
				return f.Reject("get", err)
			}
			writeContract(f.Writer, e.registry, args[0], c, e.now())
			writeCustody(f.Writer, e.registry, rec, released)
			return nil
		},
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Sender   string
	Receiver string
	Status   string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contracts in creation order",
		Long: `List contracts in creation order.

Filters combine. Status is one of all, active, expired, withdrawn or
refunded; expired means active with the timelock reached.

Examples:
  timelock list --sender alice
  timelock list --status expired --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sender, "sender", "", "only contracts from this sender")
	cmd.Flags().StringVar(&opts.Receiver, "receiver", "", "only contracts to this receiver")
	cmd.Flags().StringVar(&opts.Status, "status", "all", "all|active|expired|withdrawn|refunded")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	st, err := store.ParseStatus(opts.Status)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --status", err)
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	now := e.now()
	entries, err := e.query.List(cmd.Context(), store.Filter{
		Sender:   opts.Sender,
		Receiver: opts.Receiver,
		Status:   st,
		Now:      now,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "list failed", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "No contracts.")
		return nil
	}
	for _, entry := range entries {
		c := entry.Contract
		fmt.Fprintf(f.Writer, "%s  %-9s  %s -> %s  %s\n",
			entry.ID, status(c, now), c.Sender, c.Receiver, formatAmount(e.registry, c.LedgerID, c.Amount))
	}
	return nil
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "count",
		Short:         "Print the number of contracts ever created",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.query.Count(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "count failed", err)
			}
			return rootOpts.formatter(cmd).Success(n)
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <lock-id>",
		Short: "Show the event log of one contract",
		Long: `Show the event log of one contract, oldest first.

Events: created, claim_started, claimed, claim_failed, refunded and
transfer_orphaned. An orphaned transfer was settled after the contract had
already been finalized and needs manual reconciliation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			f := rootOpts.formatter(cmd)
			events, err := e.query.History(cmd.Context(), args[0])
			if err != nil {
				return f.Reject("history", err)
			}

			if f.Format == "json" {
				return f.Success(events)
			}
			for _, ev := range events {
				fmt.Fprintf(f.Writer, "%4d  %-17s  %-10s  %s", ev.Seq, ev.Kind, ev.Caller, formatTime(ev.At))
				for _, k := range sortedKeys(ev.Detail) {
					fmt.Fprintf(f.Writer, "  %s=%s", k, ev.Detail[k])
				}
				fmt.Fprintln(f.Writer)
			}
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/contract"
	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/query"
)

// NewOptions holds flags for the new command.
type NewOptions struct {
	*RootOptions
	Receiver  string
	Amount    string
	Hashlock  string
	Secret    string
	Timelock  uint64
	ExpiresIn time.Duration
	Ledger    string
}

// NewNewCommand creates the new command.
func NewNewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a contract with the caller as sender",
		Long: `Create a contract with the caller as sender.

The hashlock is given directly (--hashlock) or computed from a secret
(--secret). The timelock is absolute (--timelock, ns since the epoch) or
relative to now (--expires-in). Amounts are decimals in the ledger's units.

Examples:
  timelock new --as alice --receiver bob --amount 1.5 --secret s3cret --expires-in 1h
  timelock new --as alice --receiver bob --amount 0.001 --ledger ckbtc \
      --hashlock 2bb80d53... --timelock 1767225600000000000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Receiver, "receiver", "", "receiver identity")
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "amount as a decimal in ledger units")
	cmd.Flags().StringVar(&opts.Hashlock, "hashlock", "", "SHA-256 of the secret, hex")
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "secret to derive the hashlock from")
	cmd.Flags().Uint64Var(&opts.Timelock, "timelock", 0, "expiry in ns since the Unix epoch")
	cmd.Flags().DurationVar(&opts.ExpiresIn, "expires-in", 0, "expiry relative to now")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "ledger id (default from config)")
	cmd.MarkFlagsMutuallyExclusive("hashlock", "secret")
	cmd.MarkFlagsOneRequired("hashlock", "secret")
	cmd.MarkFlagsMutuallyExclusive("timelock", "expires-in")
	cmd.MarkFlagsOneRequired("timelock", "expires-in")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runNew(opts *NewOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	l, err := e.ledger(opts.Ledger)
	if err != nil {
		return err
	}
	amount, err := l.ParseAmount(opts.Amount)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --amount", err)
	}

	now := e.now()
	timelock := opts.Timelock
	if opts.ExpiresIn != 0 {
		if opts.ExpiresIn < 0 {
			return NewExitError(ExitCommandError, "--expires-in must be positive")
		}
		timelock = now + uint64(opts.ExpiresIn.Nanoseconds())
	}

	hashlock := opts.Hashlock
	if opts.Secret != "" {
		hashlock = query.HashPreimage(opts.Secret)
	}

	req := contract.NewContractRequest{
		Receiver: opts.Receiver,
		Amount:   amount,
		Hashlock: hashlock,
		Timelock: timelock,
		LedgerID: l.ID,
	}

	f := opts.formatter(cmd)
	outcome, err := e.engine.Create(cmd.Context(), req, e.caller, now)
	if err != nil {
		return f.Reject("create", err)
	}
	return f.Respond(outcome.Response(), func(w io.Writer) {
		fmt.Fprintln(w, outcome.Message)
		writeContract(w, e.registry, outcome.LockID, outcome.Contract, now)
	})
}

// ClaimOptions holds flags for the claim command.
type ClaimOptions struct {
	*RootOptions
	Preimage string
}

// NewClaimCommand creates the claim command.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClaimOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "claim <lock-id>",
		Short: "Claim a contract as its receiver",
		Long: `Claim a contract as its receiver by revealing the preimage.

The transfer to the receiver is recorded in the database's transfer
journal; its ordinal is printed as the transfer result.

Example:
  timelock claim --as bob 5f3c... --preimage s3cret`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaim(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Preimage, "preimage", "", "secret whose SHA-256 is the hashlock")
	_ = cmd.MarkFlagRequired("preimage")

	return cmd
}

func runClaim(opts *ClaimOptions, lockID string, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	now := e.now()
	f := opts.formatter(cmd)
	outcome, err := e.engine.Claim(cmd.Context(), contract.ClaimRequest{LockID: lockID, Preimage: opts.Preimage}, e.caller, now)
	if err != nil {
		return f.Reject("claim", err)
	}
	return f.Respond(outcome.Response(), func(w io.Writer) {
		writeOutcome(w, e, outcome, now)
	})
}

// RefundOptions holds flags for the refund command.
type RefundOptions struct {
	*RootOptions
}

// NewRefundCommand creates the refund command.
func NewRefundCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RefundOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "refund <lock-id>",
		Short: "Refund an expired contract to its sender",
		Long: `Refund an expired, unclaimed contract to its sender.

Example:
  timelock refund --as alice 5f3c...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefund(opts, args[0], cmd)
		},
	}

	return cmd
}

func runRefund(opts *RefundOptions, lockID string, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	now := e.now()
	f := opts.formatter(cmd)
	outcome, err := e.engine.Refund(cmd.Context(), contract.RefundRequest{LockID: lockID}, e.caller, now)
	if err != nil {
		return f.Reject("refund", err)
	}
	return f.Respond(outcome.Response(), func(w io.Writer) {
		writeOutcome(w, e, outcome, now)
	})
}

func writeOutcome(w io.Writer, e *env, o *engine.Outcome, now uint64) {
	fmt.Fprintln(w, o.Message)
	if o.Receipt != nil {
		fmt.Fprintf(w, "  transfer:  %s #%d\n", o.Receipt.LedgerID, o.Receipt.Ordinal)
	}
	writeContract(w, e.registry, o.LockID, o.Contract, now)
}

package cli

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/query"
)

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <preimage>",
		Short: "Print the hashlock for a preimage",
		Long: `Print the hashlock (lower-case hex SHA-256) for a preimage.

Example:
  timelock hash s3cret`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Success(query.HashPreimage(args[0]))
		},
	}
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "verify <preimage> <hashlock>",
		Short:         "Check whether a preimage unlocks a hashlock",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Success(query.VerifyPreimage(args[0], args[1]))
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "whoami",
		Short:         "Print the caller identity",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			caller, err := query.Caller(cfg.Identity)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid identity", err)
			}
			return rootOpts.formatter(cmd).Success(caller)
		},
	}
}

// NewNowCommand creates the now command.
func NewNowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "now",
		Short:         "Print the current time in ns since the Unix epoch",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var clock engine.Clock = engine.NewSystemClock()
			if rootOpts.Now != 0 {
				clock = fixedClock(rootOpts.Now)
			}
			return rootOpts.formatter(cmd).Success(clock.Now())
		},
	}
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Success(query.Version)
		},
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

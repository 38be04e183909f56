package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/ledger"
)

// RoleResult reports a capability change.
type RoleResult struct {
	Action     string        `json:"action"`
	Capability ir.Capability `json:"capability,omitempty"`
	Identity   ir.Identity   `json:"identity"`
}

// HasResult reports a capability lookup.
type HasResult struct {
	Capability ir.Capability `json:"capability"`
	Identity   ir.Identity   `json:"identity"`
	Held       bool          `json:"held"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the role registry with the caller as deployer",
		Long: `Grant every capability to the caller. Runs once per database; later
calls fail with ALREADY_INITIALIZED.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleChange(rootOpts, cmd, func(ctx context.Context, s *session, caller ir.Identity) (RoleResult, error) {
				return RoleResult{Action: "initialized", Identity: caller}, s.ledger.Initialize(ctx, caller)
			})
		},
	}
}

// NewGrantCommand creates the grant command.
func NewGrantCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <capability> <identity>",
		Short: "Grant a capability (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseIdentityArg("identity", args[1])
			if err != nil {
				return err
			}
			c := ir.Capability(args[0])
			return runRoleChange(rootOpts, cmd, func(ctx context.Context, s *session, caller ir.Identity) (RoleResult, error) {
				return RoleResult{Action: "granted", Capability: c, Identity: target}, s.ledger.Grant(ctx, caller, c, target)
			})
		},
	}
}

// NewRevokeCommand creates the revoke command.
func NewRevokeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <capability> <identity>",
		Short: "Revoke a capability (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseIdentityArg("identity", args[1])
			if err != nil {
				return err
			}
			c := ir.Capability(args[0])
			return runRoleChange(rootOpts, cmd, func(ctx context.Context, s *session, caller ir.Identity) (RoleResult, error) {
				return RoleResult{Action: "revoked", Capability: c, Identity: target}, s.ledger.Revoke(ctx, caller, c, target)
			})
		},
	}
}

// NewGrantUpgradeCommand creates the grant-upgrade command.
func NewGrantUpgradeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "grant-upgrade <identity>",
		Short: "Grant the upgrade capability (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseIdentityArg("identity", args[0])
			if err != nil {
				return err
			}
			return runRoleChange(rootOpts, cmd, func(ctx context.Context, s *session, caller ir.Identity) (RoleResult, error) {
				res := RoleResult{Action: "granted", Capability: ir.CapabilityUpgrade, Identity: target}
				return res, s.ledger.GrantUpgradeCapability(ctx, caller, target)
			})
		},
	}
}

func runRoleChange(rootOpts *RootOptions, cmd *cobra.Command,
	apply func(ctx context.Context, s *session, caller ir.Identity) (RoleResult, error)) error {
	s, err := openSession(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	caller, err := s.caller()
	if err != nil {
		return err
	}

	res, err := apply(cmd.Context(), s, caller)
	if err != nil {
		return err
	}
	return newFormatter(rootOpts, cmd).Result(res, func(w io.Writer) {
		if res.Capability == "" {
			fmt.Fprintf(w, "%s by %s\n", res.Action, res.Identity)
			return
		}
		prep := "to"
		if res.Action == "revoked" {
			prep = "from"
		}
		fmt.Fprintf(w, "%s %s %s %s\n", res.Action, res.Capability, prep, res.Identity)
	})
}

// NewHasCommand creates the has command.
func NewHasCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "has <capability> <identity>",
		Short: "Report whether an identity holds a capability",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIdentityArg("identity", args[1])
			if err != nil {
				return err
			}

			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			c := ir.Capability(args[0])
			held, err := s.ledger.HasCapability(cmd.Context(), c, id)
			if err != nil {
				return err
			}

			res := HasResult{Capability: c, Identity: id, Held: held}
			return newFormatter(rootOpts, cmd).Result(res, func(w io.Writer) {
				fmt.Fprintln(w, res.Held)
			})
		},
	}
}

// NewRolesCommand creates the roles command.
func NewRolesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the deployer and every capability holder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			table, err := s.ledger.Roles(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read roles", err)
			}
			return newFormatter(rootOpts, cmd).Result(table, func(w io.Writer) {
				writeRolesText(w, table)
			})
		},
	}
}

func writeRolesText(w io.Writer, table ledger.RoleTable) {
	if table.Deployer == nil {
		fmt.Fprintln(w, "Registry not initialized.")
		return
	}
	fmt.Fprintf(w, "deployer: %s\n", *table.Deployer)
	for _, c := range ir.KnownCapabilities {
		holders := table.Holders[c]
		if len(holders) == 0 {
			fmt.Fprintf(w, "%s: (none)\n", c)
			continue
		}
		names := make([]string, len(holders))
		for i, id := range holders {
			names[i] = id.String()
		}
		fmt.Fprintf(w, "%s: %s\n", c, strings.Join(names, ", "))
	}
}

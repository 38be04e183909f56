package cli

import (
	"crypto/ed25519"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/keys"
)

// IdentityInfo describes the caller's key pair.
type IdentityInfo struct {
	Address     ir.Identity `json:"address"`
	Fingerprint string      `json:"fingerprint"`
	PrivateKey  string      `json:"private_key,omitempty"`
	PublicKey   string      `json:"public_key,omitempty"`
}

func (info IdentityInfo) writeText(w io.Writer) {
	fmt.Fprintf(w, "Address:     %s\n", info.Address)
	fmt.Fprintf(w, "Fingerprint: %s\n", info.Fingerprint)
	if info.PrivateKey != "" {
		fmt.Fprintf(w, "Private key: %s\n", info.PrivateKey)
		fmt.Fprintf(w, "Public key:  %s\n", info.PublicKey)
	}
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate the caller's ed25519 identity key",
		Long: `Generate a new ed25519 key pair and print the identity address it
controls. An existing private key is never overwritten.

Examples:
  chitchat keygen
  chitchat keygen --key ./alice.pem`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(rootOpts, cmd)
			if err != nil {
				return err
			}

			privPath, pubPath := s.cfg.Identity.PrivateKey, s.cfg.Identity.PublicKey
			_, pub, err := keys.Generate(privPath, pubPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to generate key", err)
			}

			info := IdentityInfo{
				Address:     keys.Address(pub),
				Fingerprint: keys.Fingerprint(pub),
				PrivateKey:  privPath,
				PublicKey:   pubPath,
			}
			return newFormatter(rootOpts, cmd).Result(info, info.writeText)
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the caller's identity address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(rootOpts, cmd)
			if err != nil {
				return err
			}

			priv, err := s.callerKey()
			if err != nil {
				return err
			}
			pub := priv.Public().(ed25519.PublicKey)

			info := IdentityInfo{
				Address:     keys.Address(pub),
				Fingerprint: keys.Fingerprint(pub),
			}
			return newFormatter(rootOpts, cmd).Result(info, info.writeText)
		},
	}
}

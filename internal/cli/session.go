package cli

import (
	"crypto/ed25519"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chitchat/internal/config"
	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/keys"
	"github.com/roach88/chitchat/internal/ledger"
	"github.com/roach88/chitchat/internal/store"
)

// session is the per-command runtime: resolved config, logging, and an
// open ledger when the command needs one.
type session struct {
	opts    *RootOptions
	cfg     *config.Config
	dataDir string

	store  *store.Store
	ledger *ledger.Ledger
}

// loadSession resolves config and installs the slog handler it selects.
// Flags override config values.
func loadSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	var (
		cfg     *config.Config
		cfgPath string
		err     error
	)
	if opts.ConfigPath != "" {
		cfgPath = opts.ConfigPath
		cfg, err = config.LoadFile(cfgPath)
	} else {
		cfg, cfgPath, err = config.LoadOrCreate(opts.DataDir)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	dataDir := filepath.Dir(cfgPath)

	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.KeyPath != "" {
		cfg.Identity.PrivateKey = opts.KeyPath
		cfg.Identity.PublicKey = publicKeyPathFor(opts.KeyPath)
	}
	cfg.Database = config.Abs(dataDir, cfg.Database)
	cfg.Identity.PrivateKey = config.Abs(dataDir, cfg.Identity.PrivateKey)
	cfg.Identity.PublicKey = config.Abs(dataDir, cfg.Identity.PublicKey)

	installLogger(cmd.ErrOrStderr(), cfg.Log, opts.Verbose)
	slog.Debug("config loaded", "path", cfgPath, "database", cfg.Database)

	return &session{opts: opts, cfg: cfg, dataDir: dataDir}, nil
}

// openSession loads config and opens the ledger over the configured
// database.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	s, err := loadSession(opts, cmd)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(s.cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	s.store = st
	s.ledger = ledger.New(st)
	return s, nil
}

// Close releases the ledger and database, if open.
func (s *session) Close() {
	if s.ledger != nil {
		s.ledger.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// callerKey loads the caller's private key.
func (s *session) callerKey() (ed25519.PrivateKey, error) {
	priv, err := keys.LoadPrivateKey(s.cfg.Identity.PrivateKey)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NewExitError(ExitCommandError,
			"no identity key at "+s.cfg.Identity.PrivateKey+" (run \"chitchat keygen\")")
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load identity key", err)
	}
	return priv, nil
}

// caller returns the identity mutations are attributed to.
func (s *session) caller() (ir.Identity, error) {
	priv, err := s.callerKey()
	if err != nil {
		return ir.Identity{}, err
	}
	return keys.Address(priv.Public().(ed25519.PublicKey)), nil
}

// publicKeyPathFor names the public key file stored beside a private key
// given with --key.
func publicKeyPathFor(privatePath string) string {
	return strings.TrimSuffix(privatePath, filepath.Ext(privatePath)) + ".pub.pem"
}

// installLogger sets the default slog handler. Verbose forces debug.
func installLogger(w io.Writer, cfg config.LogConfig, verbose bool) {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(h))
}

// parseIdentityArg parses a positional identity argument.
func parseIdentityArg(name, value string) (ir.Identity, error) {
	id, err := ir.ParseIdentity(value)
	if err != nil {
		return ir.Identity{}, WrapExitError(ExitCommandError, "invalid "+name, err)
	}
	return id, nil
}

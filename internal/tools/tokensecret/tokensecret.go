// Package tokensecret generates signing secrets for ledger bearer tokens.
package tokensecret

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/paywire/paywire/internal/services/ledger/auth"
)

// EnvKey is the variable the ledger reads its token secret from.
const EnvKey = "PAYWIRE_TOKEN_SECRET"

// minBytes keeps the hex encoding at or above auth.MinSecretBytes.
const minBytes = (auth.MinSecretBytes + 1) / 2

// Config holds configuration for secret generation.
type Config struct {
	Bytes int
	// Raw prints only the hex secret, without the KEY= prefix.
	Raw bool
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes")
	fs.BoolVar(&cfg.Raw, "raw", cfg.Raw, "print only the secret")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the secret and writes it to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes < minBytes {
		return fmt.Errorf("bytes must be at least %d", minBytes)
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if cfg.Raw {
		_, err := fmt.Fprintln(out, secret)
		return err
	}
	_, err := fmt.Fprintf(out, "%s=%s\n", EnvKey, secret)
	return err
}

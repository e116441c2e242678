// Package seed loads the initial account set the engine starts from. The
// engine itself never reads files; startup resolves the seed and hands the
// store a fixed list.
package seed

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/teller-id/teller/internal/account"
	"github.com/teller-id/teller/internal/auth"
	"github.com/teller-id/teller/internal/money"
)

// Entry describes one seeded account. Either PIN (plaintext, hashed at load)
// or PINHash (pre-computed bcrypt hash) must be set; PINHash wins when both
// are present.
type Entry struct {
	ID      string `json:"id"`
	PIN     string `json:"pin,omitempty"`
	PINHash string `json:"pin_hash,omitempty"`
	Balance string `json:"balance"`
}

// Defaults returns the built-in seed: the three accounts the original
// deployment shipped with.
func Defaults() []Entry {
	return []Entry{
		{ID: "ATA", PIN: "8830", Balance: "100000"},
		{ID: "AISYAH", PIN: "8790", Balance: "50000"},
		{ID: "EZRA DEBY", PIN: "9086", Balance: "200000"},
	}
}

// Load reads a JSON seed file. An empty path yields Defaults.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return Defaults(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return entries, nil
}

// Apply creates each seeded account in the store, hashing plaintext PINs.
func Apply(store *account.Store, entries []Entry) error {
	for _, entry := range entries {
		balance, err := money.Parse(entry.Balance)
		if err != nil {
			return fmt.Errorf("seed %q: invalid balance %q", entry.ID, entry.Balance)
		}
		if balance.IsNegative() {
			return fmt.Errorf("seed %q: negative balance %q", entry.ID, entry.Balance)
		}

		hash := []byte(entry.PINHash)
		if len(hash) == 0 {
			if entry.PIN == "" {
				return fmt.Errorf("seed %q: missing pin and pin_hash", entry.ID)
			}
			if hash, err = auth.HashPIN(entry.PIN); err != nil {
				return fmt.Errorf("seed %q: hash pin: %w", entry.ID, err)
			}
		}

		if err := store.Create(entry.ID, hash, balance); err != nil {
			return fmt.Errorf("seed %q: %w", entry.ID, err)
		}
	}
	return nil
}

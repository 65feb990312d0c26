// Package ledger tracks the pool of user-supplied credentials and which of
// them are exhausted for the current UTC day. State lives in the injected
// store and is re-read on every lookup, so an exhaustion marked by one call
// is visible to the next and a day rollover is observed promptly without an
// explicit cleanup pass.
package ledger

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pyiy/zimage/internal/store"
)

const dayFormat = "2006-01-02"

// Stats summarizes the pool for the current day.
type Stats struct {
	Total     int `json:"total"`
	Exhausted int `json:"exhausted"`
	Active    int `json:"active"`
}

// snapshot is the persisted per-day exhaustion record. A snapshot whose
// date differs from today is treated as empty and is only written back on
// the first exhaustion event of the new day.
type snapshot struct {
	Date      string          `json:"date"`
	Exhausted map[string]bool `json:"exhausted"`
}

// Ledger reads and writes credential state through a store.Service.
type Ledger struct {
	store  store.Service
	logger *slog.Logger
	now    func() time.Time
}

// New creates a ledger over the given store.
func New(s store.Service, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  s,
		logger: logger.With("component", "ledger"),
		now:    time.Now,
	}
}

// SplitCredentials parses a comma-separated credential string, trimming
// whitespace and dropping empty entries. Order is preserved.
func SplitCredentials(raw string) []string {
	if raw == "" {
		return nil
	}
	var creds []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			creds = append(creds, trimmed)
		}
	}
	return creds
}

// Credentials returns the configured pool in order.
func (l *Ledger) Credentials() ([]string, error) {
	raw, _, err := l.store.Get(store.KeyCredentials)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential list: %w", err)
	}
	return SplitCredentials(raw), nil
}

// SetCredentials replaces the configured pool with a raw comma-separated
// string. Exhaustion state for removed credentials simply stops mattering;
// it is keyed by literal string and ignored once the string is gone.
func (l *Ledger) SetCredentials(raw string) error {
	if err := l.store.Set(store.KeyCredentials, raw); err != nil {
		return fmt.Errorf("failed to persist credential list: %w", err)
	}
	l.logger.Info("Credential list updated", "count", len(SplitCredentials(raw)))
	return nil
}

// Stats counts how many of today's credentials are exhausted.
func (l *Ledger) Stats() (Stats, error) {
	creds, err := l.Credentials()
	if err != nil {
		return Stats{}, err
	}
	snap, err := l.load()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: len(creds)}
	for _, cred := range creds {
		if snap.Exhausted[cred] {
			stats.Exhausted++
		}
	}
	stats.Active = stats.Total - stats.Exhausted
	return stats, nil
}

// NextAvailable returns the first credential, in configured order, not
// marked exhausted today. The boolean is false when the list is empty or
// every entry is exhausted.
func (l *Ledger) NextAvailable() (string, bool, error) {
	creds, err := l.Credentials()
	if err != nil {
		return "", false, err
	}
	snap, err := l.load()
	if err != nil {
		return "", false, err
	}
	for _, cred := range creds {
		if !snap.Exhausted[cred] {
			return cred, true, nil
		}
	}
	return "", false, nil
}

// MarkExhausted idempotently flags a credential as exhausted for the current
// UTC day and persists the ledger immediately.
func (l *Ledger) MarkExhausted(credential string) error {
	snap, err := l.load()
	if err != nil {
		return err
	}
	if snap.Exhausted[credential] {
		return nil
	}
	snap.Exhausted[credential] = true
	if err := store.SetJSON(l.store, store.KeyTokenLedger, snap); err != nil {
		return fmt.Errorf("failed to persist exhaustion ledger: %w", err)
	}
	l.logger.Warn("Credential exhausted for today", "credential_suffix", safeSuffix(credential), "day", snap.Date)
	return nil
}

// load reads the persisted snapshot, resetting it in memory when the stored
// day is not today. Nothing is written here; persistence happens only in
// MarkExhausted.
func (l *Ledger) load() (snapshot, error) {
	today := l.now().UTC().Format(dayFormat)
	fresh := snapshot{Date: today, Exhausted: make(map[string]bool)}

	var stored snapshot
	ok, err := store.GetJSON(l.store, store.KeyTokenLedger, &stored)
	if err != nil {
		return snapshot{}, fmt.Errorf("failed to load exhaustion ledger: %w", err)
	}
	if !ok || stored.Date != today {
		return fresh, nil
	}
	if stored.Exhausted == nil {
		stored.Exhausted = make(map[string]bool)
	}
	return stored, nil
}

// safeSuffix returns the last 4 characters of a credential, or the full
// string if it is shorter.
func safeSuffix(credential string) string {
	if len(credential) > 4 {
		return credential[len(credential)-4:]
	}
	return credential
}

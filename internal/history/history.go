// Package history persists the generation history and the prompt history.
// Generation history is pruned to the last 24 hours on load; the prompt
// history is a de-duplicated most-recent-first list capped at 50 entries.
package history

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pyiy/zimage/internal/model"
	"github.com/pyiy/zimage/internal/store"
)

const (
	// Retention is how long a generated image stays in history.
	Retention = 24 * time.Hour
	// PromptCap bounds the prompt history length.
	PromptCap = 50
)

// Manager reads and writes history through the injected store.
type Manager struct {
	store  store.Service
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a history manager.
func NewManager(s store.Service, logger *slog.Logger) *Manager {
	return &Manager{
		store:  s,
		logger: logger.With("component", "history"),
		now:    time.Now,
	}
}

// Load returns the generation history, most recent first, with entries older
// than the retention window dropped.
func (m *Manager) Load() ([]model.GeneratedImage, error) {
	var items []model.GeneratedImage
	if _, err := store.GetJSON(m.store, store.KeyHistory, &items); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	cutoff := m.now().Add(-Retention)
	kept := items[:0]
	for _, item := range items {
		if item.Timestamp.After(cutoff) {
			kept = append(kept, item)
		}
	}
	if len(kept) < len(items) {
		m.logger.Debug("Pruned stale history entries", "dropped", len(items)-len(kept))
	}
	return kept, nil
}

func (m *Manager) save(items []model.GeneratedImage) error {
	if err := store.SetJSON(m.store, store.KeyHistory, items); err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	return nil
}

// Add prepends a freshly generated image.
func (m *Manager) Add(img model.GeneratedImage) error {
	items, err := m.Load()
	if err != nil {
		return err
	}
	return m.save(append([]model.GeneratedImage{img}, items...))
}

// Update replaces the stored record with the same ID in place. Unknown IDs
// report an error so callers notice a pruned or deleted record.
func (m *Manager) Update(img model.GeneratedImage) error {
	items, err := m.Load()
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == img.ID {
			items[i] = img
			return m.save(items)
		}
	}
	return fmt.Errorf("image %s not found in history", img.ID)
}

// Get returns the record with the given ID.
func (m *Manager) Get(id string) (*model.GeneratedImage, error) {
	items, err := m.Load()
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("image %s not found in history", id)
}

// Delete removes the record with the given ID. It returns the remaining
// history and the entry to display next: the most recent remaining one, or
// nil when the history became empty.
func (m *Manager) Delete(id string) ([]model.GeneratedImage, *model.GeneratedImage, error) {
	items, err := m.Load()
	if err != nil {
		return nil, nil, err
	}
	kept := make([]model.GeneratedImage, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if err := m.save(kept); err != nil {
		return nil, nil, err
	}
	if len(kept) == 0 {
		return kept, nil, nil
	}
	next := kept[0]
	return kept, &next, nil
}

// Prune rewrites the persisted history with stale entries removed. Load
// already filters on read; this keeps the stored record small and is run by
// the maintenance scheduler.
func (m *Manager) Prune() error {
	items, err := m.Load()
	if err != nil {
		return err
	}
	return m.save(items)
}

// Prompts returns the prompt history, most recent first.
func (m *Manager) Prompts() ([]string, error) {
	var prompts []string
	if _, err := store.GetJSON(m.store, store.KeyPromptHistory, &prompts); err != nil {
		return nil, fmt.Errorf("failed to load prompt history: %w", err)
	}
	return prompts, nil
}

// AddPrompt records a prompt at the front of the history, removing an exact
// duplicate elsewhere in the list and trimming to the cap.
func (m *Manager) AddPrompt(prompt string) error {
	if prompt == "" {
		return nil
	}
	prompts, err := m.Prompts()
	if err != nil {
		return err
	}
	updated := make([]string, 0, len(prompts)+1)
	updated = append(updated, prompt)
	for _, p := range prompts {
		if p != prompt {
			updated = append(updated, p)
		}
	}
	if len(updated) > PromptCap {
		updated = updated[:PromptCap]
	}
	if err := store.SetJSON(m.store, store.KeyPromptHistory, updated); err != nil {
		return fmt.Errorf("failed to persist prompt history: %w", err)
	}
	return nil
}

// Package backup serializes the full record store to a portable JSON
// document and restores it. Import applies each top-level key
// independently: a valid document with one malformed section still
// restores the others.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"worksync/internal/model"
	"worksync/internal/store"
)

// Codec exports and imports full store snapshots.
type Codec struct {
	store *store.Store
	now   func() time.Time
}

// NewCodec wires the codec. now defaults to the wall clock and only feeds
// the export filename.
func NewCodec(st *store.Store, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{store: st, now: now}
}

// Export produces the pretty-printed snapshot document.
func (c *Codec) Export() ([]byte, error) {
	return json.MarshalIndent(c.store.Snapshot(), "", "  ")
}

// Filename is the suggested download name for an export taken now.
func (c *Codec) Filename() string {
	return fmt.Sprintf("worksync_backup_%s.json", c.now().Format("2006-01-02"))
}

// Import parses a snapshot document and wholesale-replaces each collection
// present in it. A document that is not a JSON object fails with no
// mutation. Keys absent from the document leave current values untouched;
// a present key that fails to decode is skipped and logged.
func (c *Codec) Import(ctx context.Context, doc []byte) error {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(doc, &sections); err != nil {
		return fmt.Errorf("backup: malformed document: %w", err)
	}

	if raw, ok := sections[store.KeyUsers]; ok {
		var users []model.User
		if err := json.Unmarshal(raw, &users); err != nil {
			log.Printf("backup: skipping %s: %v", store.KeyUsers, err)
		} else if err := c.store.ReplaceUsers(ctx, users); err != nil {
			return err
		}
	}
	if raw, ok := sections[store.KeyTimeRecords]; ok {
		var records []model.TimeRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			log.Printf("backup: skipping %s: %v", store.KeyTimeRecords, err)
		} else if err := c.store.ReplaceTimeRecords(ctx, records); err != nil {
			return err
		}
	}
	if raw, ok := sections[store.KeyThreads]; ok {
		var threads []model.Thread
		if err := json.Unmarshal(raw, &threads); err != nil {
			log.Printf("backup: skipping %s: %v", store.KeyThreads, err)
		} else if err := c.store.ReplaceThreads(ctx, threads); err != nil {
			return err
		}
	}
	if raw, ok := sections[store.KeyEvents]; ok {
		var events []model.CalendarEvent
		if err := json.Unmarshal(raw, &events); err != nil {
			log.Printf("backup: skipping %s: %v", store.KeyEvents, err)
		} else if err := c.store.ReplaceEvents(ctx, events); err != nil {
			return err
		}
	}
	if raw, ok := sections[store.KeyTheme]; ok {
		var theme model.ThemeColor
		if err := json.Unmarshal(raw, &theme); err != nil || !model.ValidTheme(theme) {
			log.Printf("backup: skipping %s: invalid theme", store.KeyTheme)
		} else if _, err := c.store.SetTheme(ctx, theme); err != nil {
			return err
		}
	}
	return nil
}

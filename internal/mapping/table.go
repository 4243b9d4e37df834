package mapping

import "sync"

// Table holds the active mapping document. Reads are cheap and concurrent;
// Reload swaps the document atomically so in-flight sync runs keep the
// snapshot they started with.
type Table struct {
	mu  sync.RWMutex
	doc Document
}

// NewTable returns a table seeded with the given document.
func NewTable(doc Document) *Table {
	return &Table{doc: doc}
}

// Fields returns a snapshot of the current mapping entries. The returned
// slice must not be modified.
func (t *Table) Fields() []Field {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.doc.Fields
}

// Reload replaces the active document.
func (t *Table) Reload(doc Document) {
	t.mu.Lock()
	t.doc = doc
	t.mu.Unlock()
}

// ReloadFile loads a mapping file from disk and installs it. The active
// document is untouched when the file fails validation.
func (t *Table) ReloadFile(path string) error {
	doc, err := LoadFile(path)
	if err != nil {
		return err
	}
	t.Reload(*doc)
	return nil
}

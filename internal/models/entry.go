// Package models defines the core data structures used throughout lexmerge
// including entries, senses, merge/split operations, and sense transfers.
package models

import (
	"sort"
	"time"
)

// Entry is a top-level lexical item owning an ordered list of senses.
type Entry struct {
	ID        string            `json:"id" yaml:"id"`
	Headword  string            `json:"headword" yaml:"headword" validate:"required"`
	Category  string            `json:"category,omitempty" yaml:"category,omitempty"`
	Senses    []*Sense          `json:"senses" yaml:"senses" validate:"dive"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Revision  int64             `json:"revision" yaml:"-"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"-"`
}

// EntryDescriptor holds the minimal fields needed to create a new entry.
type EntryDescriptor struct {
	Headword string            `json:"headword" validate:"required"`
	Category string            `json:"category,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewEntry builds an empty entry from a descriptor.
func (d EntryDescriptor) NewEntry(id string) *Entry {
	return &Entry{
		ID:       id,
		Headword: d.Headword,
		Category: d.Category,
		Metadata: copyStringMap(d.Metadata),
		Senses:   []*Sense{},
	}
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	out.Metadata = copyStringMap(e.Metadata)
	out.Senses = make([]*Sense, len(e.Senses))
	for i, s := range e.Senses {
		out.Senses[i] = s.Clone()
	}
	return &out
}

// SenseIndex returns the position of a sense in the entry, or -1.
func (e *Entry) SenseIndex(senseID string) int {
	for i, s := range e.Senses {
		if s.ID == senseID {
			return i
		}
	}
	return -1
}

// Sense returns the sense with the given ID, or nil.
func (e *Entry) Sense(senseID string) *Sense {
	if i := e.SenseIndex(senseID); i >= 0 {
		return e.Senses[i]
	}
	return nil
}

// SenseIDs returns the entry's sense IDs in order.
func (e *Entry) SenseIDs() []string {
	ids := make([]string, len(e.Senses))
	for i, s := range e.Senses {
		ids[i] = s.ID
	}
	return ids
}

// RemoveSenses drops the given senses, keeping the order of the rest.
func (e *Entry) RemoveSenses(ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := e.Senses[:0:0]
	for _, s := range e.Senses {
		if !drop[s.ID] {
			kept = append(kept, s)
		}
	}
	e.Senses = kept
}

// MultiText maps a language code to text in that language.
type MultiText map[string]string

// Languages returns the language codes in sorted order.
func (m MultiText) Languages() []string {
	langs := make([]string, 0, len(m))
	for lang := range m {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Clone returns a copy of the multitext.
func (m MultiText) Clone() MultiText {
	if m == nil {
		return nil
	}
	out := make(MultiText, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

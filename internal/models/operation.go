package models

import "time"

// OperationType identifies the kind of merge/split operation
type OperationType string

const (
	OperationSplitEntry   OperationType = "split_entry"
	OperationMergeEntries OperationType = "merge_entries"
	OperationMergeSenses  OperationType = "merge_senses"
)

// OperationStatus is the lifecycle state of an operation
type OperationStatus string

const (
	StatusPending   OperationStatus = "pending"
	StatusCompleted OperationStatus = "completed"
	StatusFailed    OperationStatus = "failed"
)

// IsTerminal reports whether the status can no longer change
func (s OperationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseOperationStatus converts a string into an OperationStatus
func ParseOperationStatus(s string) (OperationStatus, error) {
	switch st := OperationStatus(s); st {
	case StatusPending, StatusCompleted, StatusFailed:
		return st, nil
	}
	return "", Errorf(KindValidation, "parse status", "unknown operation status %q", s)
}

// Operation is one merge/split unit of work.
//
// For merge_senses, EntryID is the entry being edited, TargetID is the
// surviving sense and SenseIDs are the absorbed senses. For split_entry,
// TargetID is filled with the new entry ID once the split completes.
type Operation struct {
	ID         string            `json:"id"`
	Type       OperationType     `json:"operation_type"`
	SourceID   string            `json:"source_id,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	EntryID    string            `json:"entry_id,omitempty"`
	SenseIDs   []string          `json:"sense_ids"`
	Status     OperationStatus   `json:"status"`
	Actor      string            `json:"actor,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Result     *Result           `json:"result,omitempty"`
}

// ShortID returns a shortened operation ID (first 8 characters)
func (o *Operation) ShortID() string {
	if len(o.ID) > 8 {
		return o.ID[:8]
	}
	return o.ID
}

// EntryIDs returns every entry the operation touches.
func (o *Operation) EntryIDs() []string {
	switch o.Type {
	case OperationMergeSenses:
		return []string{o.EntryID}
	case OperationSplitEntry:
		return []string{o.SourceID}
	default:
		return []string{o.SourceID, o.TargetID}
	}
}

// Clone returns a deep copy of the operation.
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}
	out := *o
	out.SenseIDs = append([]string(nil), o.SenseIDs...)
	out.Metadata = copyStringMap(o.Metadata)
	out.Result = o.Result.Clone()
	return &out
}

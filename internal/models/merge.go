package models

// ConflictStrategy defines how an entry merge handles a sense that collides
// with one already present in the target entry
type ConflictStrategy string

const (
	ConflictRename    ConflictStrategy = "rename"    // Reissue the incoming sense ID
	ConflictSkip      ConflictStrategy = "skip"      // Leave the incoming sense on the source
	ConflictOverwrite ConflictStrategy = "overwrite" // Replace the colliding target sense
)

// Valid reports whether s is one of the known strategies
func (s ConflictStrategy) Valid() bool {
	switch s {
	case ConflictRename, ConflictSkip, ConflictOverwrite:
		return true
	}
	return false
}

// ParseConflictStrategy converts user input into a ConflictStrategy
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	if st := ConflictStrategy(s); st.Valid() {
		return st, nil
	}
	return "", Errorf(KindValidation, "parse conflict strategy", "unknown conflict strategy %q (want rename, skip or overwrite)", s)
}

// SenseMergeStrategy defines how several senses are combined into one
type SenseMergeStrategy string

const (
	MergeCombineAll SenseMergeStrategy = "combine_all" // Concatenate content, dedupe children
	MergeKeepTarget SenseMergeStrategy = "keep_target" // Target content wins
	MergeKeepSource SenseMergeStrategy = "keep_source" // First source replaces target content
)

// Valid reports whether s is one of the known strategies
func (s SenseMergeStrategy) Valid() bool {
	switch s {
	case MergeCombineAll, MergeKeepTarget, MergeKeepSource:
		return true
	}
	return false
}

// ParseSenseMergeStrategy converts user input into a SenseMergeStrategy
func ParseSenseMergeStrategy(s string) (SenseMergeStrategy, error) {
	if st := SenseMergeStrategy(s); st.Valid() {
		return st, nil
	}
	return "", Errorf(KindValidation, "parse merge strategy", "unknown sense merge strategy %q (want combine_all, keep_target or keep_source)", s)
}

// OperationError is the machine-readable form of a fatal failure
type OperationError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Result contains the outcome of a merge/split operation
type Result struct {
	OperationID       string            `json:"operation_id"`
	Success           bool              `json:"success"`
	SourceEntry       *Entry            `json:"source_entry,omitempty"`
	TargetEntry       *Entry            `json:"target_entry,omitempty"`
	TransferredSenses []string          `json:"transferred_senses"`
	ConflictsResolved int               `json:"conflicts_resolved"`
	Remaps            map[string]string `json:"remaps,omitempty"` // original sense ID -> reissued ID
	Warnings          []string          `json:"warnings,omitempty"`
	Errors            []OperationError  `json:"errors,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.SourceEntry = r.SourceEntry.Clone()
	out.TargetEntry = r.TargetEntry.Clone()
	out.TransferredSenses = append([]string(nil), r.TransferredSenses...)
	out.Remaps = copyStringMap(r.Remaps)
	out.Warnings = append([]string(nil), r.Warnings...)
	out.Errors = append([]OperationError(nil), r.Errors...)
	return &out
}

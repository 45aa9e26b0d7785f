package models

import (
	"fmt"
	"time"
)

// SenseTransfer records one sense moving from one entry to another.
// Rows are append-only; ordering a sense's rows by TransferDate gives its
// provenance trail.
type SenseTransfer struct {
	ID              string            `json:"id"`
	SenseID         string            `json:"sense_id"`
	OriginalSenseID string            `json:"original_sense_id,omitempty"` // set when the ID was reissued
	OriginalEntryID string            `json:"original_entry_id"`
	NewEntryID      string            `json:"new_entry_id"`
	TransferDate    time.Time         `json:"transfer_date"`
	OperationID     string            `json:"operation_id"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// TransferID builds the ledger key for the seq-th transfer of an operation.
func TransferID(operationID string, seq int) string {
	return fmt.Sprintf("%s:%04d", operationID, seq)
}

// TouchesSense reports whether the transfer concerns the given sense ID,
// under either its current or original ID.
func (t *SenseTransfer) TouchesSense(senseID string) bool {
	return t.SenseID == senseID || t.OriginalSenseID == senseID
}

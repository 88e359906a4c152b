// Package audit records state-mutating actions of the taskman service.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/taskman/internal/models"
)

// Outcomes written to the audit log.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Sink persists audit entries.
type Sink interface {
	WriteAudit(ctx context.Context, action, inputsHash, outcome string, taskID int64, details string) (*models.AuditEntry, error)
}

// Recorder writes audit entries for mutations.
type Recorder struct {
	sink Sink
}

// NewRecorder creates a new Recorder.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record writes an entry for action with a hash of its inputs.
func (r *Recorder) Record(ctx context.Context, action string, inputs interface{}, outcome string, taskID int64, details string) (*models.AuditEntry, error) {
	return r.sink.WriteAudit(ctx, action, HashInputs(inputs), outcome, taskID, details)
}

// HashInputs returns the hex SHA256 of the JSON encoding of inputs.
func HashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

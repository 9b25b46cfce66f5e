// Package review owns the human side of reconciliation: reviewer decisions,
// the document lifecycle gate, and the append-only audit trail. All mutations
// for a document are rejected once it reaches the APPROVED state.
package review

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced verbatim to callers; reviewers must see exactly
// why an action was rejected.
var (
	// ErrValidation marks bad or missing required input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown document or comparison id.
	ErrNotFound = errors.New("not found")

	// ErrDocumentLocked marks a mutation attempted on an approved document.
	ErrDocumentLocked = errors.New("document is approved and locked")

	// ErrAlreadyApproved marks a repeated approval. Approval is a one-time
	// irreversible action, not an idempotent no-op.
	ErrAlreadyApproved = errors.New("document is already approved")

	// ErrDataIntegrity marks an inconsistency between stored records, such
	// as a decision referencing a comparison that no longer exists.
	ErrDataIntegrity = errors.New("data integrity violation")
)

// ErrInvalidSource is the validation failure for an unrecognized
// selected-source tag. It unwraps to ErrValidation.
var ErrInvalidSource = fmt.Errorf("%w: unrecognized selected source", ErrValidation)

package wallet

import (
	"encoding/json"
	"strings"

	"github.com/peertrade/backend/internal/domain/shared"
)

// Reference identifies the business document a balance mutation belongs to.
// The same reference ID is shared by both ledger entries of a transfer so
// they can be correlated later.
type Reference struct {
	ID       string
	Currency string
	Metadata map[string]string
}

// NewReference creates a reference with the given correlation ID and currency
func NewReference(id, currency string) Reference {
	return Reference{
		ID:       strings.TrimSpace(id),
		Currency: strings.ToUpper(strings.TrimSpace(currency)),
	}
}

// WithMetadata returns a copy of the reference with the metadata entry added.
// The map is copied, so the receiver is never touched.
func (r Reference) WithMetadata(key, value string) Reference {
	meta := make(map[string]string, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		meta[k] = v
	}
	meta[key] = value
	r.Metadata = meta
	return r
}

// WithSuffix derives a new reference sharing the same currency and metadata,
// with the suffix appended to the correlation ID. Used for fee entries tied
// to a parent transfer. The metadata map is copied so later edits to either
// reference stay independent.
func (r Reference) WithSuffix(suffix string) Reference {
	derived := r
	derived.ID = r.ID + suffix
	if r.Metadata != nil {
		derived.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			derived.Metadata[k] = v
		}
	}
	return derived
}

// Validate checks the reference is well-formed
func (r Reference) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return shared.NewDomainError("INVALID_REFERENCE", "Reference ID cannot be empty")
	}
	if len(r.ID) > 100 {
		return shared.NewDomainError("INVALID_REFERENCE", "Reference ID cannot exceed 100 characters")
	}
	if strings.TrimSpace(r.Currency) == "" {
		return shared.NewDomainError("INVALID_REFERENCE", "Reference currency cannot be empty")
	}
	return nil
}

// MetadataJSON serializes the metadata map for storage. Returns "{}" when
// there is no metadata or it cannot be serialized.
func (r Reference) MetadataJSON() string {
	if len(r.Metadata) == 0 {
		return "{}"
	}
	data, err := json.Marshal(r.Metadata)
	if err != nil {
		return "{}"
	}
	return string(data)
}

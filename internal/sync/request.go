package sync

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atelier-ops/atelier-sync/internal/syncerr"
)

// Supported entities
const (
	EntityContacts = "contacts"
	EntityProducts = "products"
	EntityOrders   = "orders"
)

// Run operations as written to the run log
const (
	OperationDryRun = "dry_run"
	OperationApply  = "apply"
)

// erpDateLayout is the dd/mm/yyyy format the ERP uses for dates
const erpDateLayout = "02/01/2006"

// Request describes one tiny-sync invocation
type Request struct {
	Entity string `json:"entity,omitempty" validate:"required,oneof=contacts products orders"`
	DryRun bool   `json:"dryRun,omitempty"`

	// Since limits the ERP search to records changed on or after a date,
	// as dd/mm/yyyy or yyyy-mm-dd
	Since *string `json:"since,omitempty"`

	// TestOnly performs the connectivity test and nothing else
	TestOnly bool `json:"testOnly,omitempty"`
}

// Operation returns the run log operation for the request
func (r Request) Operation() string {
	if r.DryRun {
		return OperationDryRun
	}
	return OperationApply
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateEntity checks the entity field. It is not called for test-only requests.
func (r Request) validateEntity() error {
	if err := validate.Struct(r); err != nil {
		return syncerr.Validation("invalid entity %q: must be one of contacts, products, orders", r.Entity)
	}
	return nil
}

// sinceFilter returns the since filter in the ERP's date format, or "" when unset
func (r Request) sinceFilter() (string, error) {
	if r.Since == nil {
		return "", nil
	}
	s := strings.TrimSpace(*r.Since)
	if s == "" {
		return "", nil
	}
	if _, err := time.Parse(erpDateLayout, s); err == nil {
		return s, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Format(erpDateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(erpDateLayout), nil
	}
	return "", syncerr.Validation("invalid since %q: expected dd/mm/yyyy or yyyy-mm-dd", s)
}

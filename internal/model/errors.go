package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds raised by the inventory engine. Typed errors below match them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrValidation        = errors.New("validation error")
	ErrDependency        = errors.New("dependency failure")
)

// NotFoundError names the missing reference.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// InsufficientStockError carries the shortfall of a rejected usage.
type InsufficientStockError struct {
	ItemID    string
	Requested float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %g, available %g (short %g)",
		e.ItemID, e.Requested, e.Available, e.Shortfall())
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Shortfall is how much more stock the request needed.
func (e *InsufficientStockError) Shortfall() float64 {
	if e.Requested <= e.Available {
		return 0
	}
	return e.Requested - e.Available
}

// PermissionError reports an ownership mismatch.
type PermissionError struct {
	MemberID string
	Resource string
	ID       string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("member %s may not access %s %s", e.MemberID, e.Resource, e.ID)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermissionDenied }

// ValidationError reports malformed input on one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// DependencyError wraps a failed storage or transport call.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

func (e *DependencyError) Is(target error) bool { return target == ErrDependency }

// Dependency wraps err as a DependencyError unless it already carries an engine kind.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	return &DependencyError{Op: op, Err: err}
}

// IsKnown reports whether err already carries one of the engine error kinds.
func IsKnown(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrInsufficientStock, ErrPermissionDenied, ErrValidation, ErrDependency} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Shortage is one deficient ingredient of a recipe cook.
type Shortage struct {
	FoodID    string  `json:"food_id"`
	Name      string  `json:"name"`
	Required  float64 `json:"required"`
	Available float64 `json:"available"`
	Unit      string  `json:"unit"`
}

// ShortageError lists every deficient ingredient found before a cook was aborted.
type ShortageError struct {
	RecipeID  string
	Shortages []Shortage
}

func (e *ShortageError) Error() string {
	names := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		names[i] = fmt.Sprintf("%s (need %g, have %g)", s.Name, s.Required, s.Available)
	}
	return fmt.Sprintf("insufficient stock to cook recipe %s: %s", e.RecipeID, strings.Join(names, ", "))
}

func (e *ShortageError) Is(target error) bool { return target == ErrInsufficientStock }

// ItemError records one failed unit of work inside a batch.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchReport makes partial success explicit for sweeps and batch jobs.
type BatchReport struct {
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// Success records one succeeded unit.
func (r *BatchReport) Success() {
	r.Processed++
	r.Succeeded++
}

// Fail records one failed unit.
func (r *BatchReport) Fail(id string, err error) {
	r.Processed++
	r.Failed++
	r.Errors = append(r.Errors, ItemError{ID: id, Error: err.Error()})
}

package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is the parent of every "node does not exist" error.
	ErrNotFound = errors.New("not found")

	ErrCategoryNotFound    = errors.New("category not found")
	ErrSubcategoryNotFound = errors.New("subcategory not found")
	ErrToolNotFound        = errors.New("tool not found")

	// ErrValidationFailed is matched by every *ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidPricing is returned when a pricing payload cannot be decoded
	// into a label -> value mapping.
	ErrInvalidPricing = errors.New("invalid pricing")

	// ErrAmbiguousTool is returned when a tool id matches more than one
	// location and the request does not say which one is meant.
	ErrAmbiguousTool = errors.New("ambiguous tool id")
)

// NotFoundError names the kind of node that was missing and the key used to
// look it up. It matches both its Kind sentinel and ErrNotFound.
type NotFoundError struct {
	Kind error
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == e.Kind
}

func notFound(kind error, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// FieldError is a single validation violation. Path is a path-like key into
// the document, e.g. "categories[0].subcategories[1].tools[2].id".
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// FieldErrors is the full list of violations found in one validation pass.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	msgs := make([]string, len(fe))
	for i, e := range fe {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Map groups messages by path for per-field display.
func (fe FieldErrors) Map() map[string][]string {
	out := make(map[string][]string, len(fe))
	for _, e := range fe {
		out[e.Path] = append(out[e.Path], e.Message)
	}
	return out
}

// Paths returns the distinct paths in sorted order.
func (fe FieldErrors) Paths() []string {
	m := fe.Map()
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (fe *FieldErrors) add(path, format string, args ...any) {
	*fe = append(*fe, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidationError wraps the violations that rejected a document or a node.
type ValidationError struct {
	Errors FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Errors)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// AsValidationError returns nil when errs is empty.
func AsValidationError(errs FieldErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: errs}
}

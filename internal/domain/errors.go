// Package domain defines the manifest model, session context and errors for the semantic layer.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// SyntaxError indicates that input SQL does not parse.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string { return e.Message }

// InvalidModelDefinitionError indicates that a model, metric or rollup carries
// SQL or an expression that does not parse.
type InvalidModelDefinitionError struct {
	Name    string
	Message string
}

func (e *InvalidModelDefinitionError) Error() string {
	return fmt.Sprintf("invalid definition of %q: %s", e.Name, e.Message)
}

// UnknownRelationshipError indicates a traversal through an undeclared relationship.
type UnknownRelationshipError struct {
	Message string
}

func (e *UnknownRelationshipError) Error() string { return e.Message }

// UnknownModelError indicates a reference to a model absent from the manifest.
type UnknownModelError struct {
	Message string
}

func (e *UnknownModelError) Error() string { return e.Message }

// CyclicModelDependencyError reports models whose definitions require each other.
type CyclicModelDependencyError struct {
	Cycle []string
}

func (e *CyclicModelDependencyError) Error() string {
	return "found cycle in models: " + strings.Join(e.Cycle, " -> ")
}

// InternalInconsistencyError marks a broken invariant inside the compiler.
// It signals a defect rather than bad input.
type InternalInconsistencyError struct {
	Message string
}

func (e *InternalInconsistencyError) Error() string { return "internal inconsistency: " + e.Message }

// TranslationError indicates that dialect translation failed.
type TranslationError struct {
	Message string
}

func (e *TranslationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrSyntax creates a SyntaxError with a formatted message.
func ErrSyntax(format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidModelDefinition creates an InvalidModelDefinitionError for the named definition.
func ErrInvalidModelDefinition(name, format string, args ...interface{}) *InvalidModelDefinitionError {
	return &InvalidModelDefinitionError{Name: name, Message: fmt.Sprintf(format, args...)}
}

// ErrUnknownRelationship creates an UnknownRelationshipError with a formatted message.
func ErrUnknownRelationship(format string, args ...interface{}) *UnknownRelationshipError {
	return &UnknownRelationshipError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnknownModel creates an UnknownModelError with a formatted message.
func ErrUnknownModel(format string, args ...interface{}) *UnknownModelError {
	return &UnknownModelError{Message: fmt.Sprintf(format, args...)}
}

// ErrCyclicModelDependency creates a CyclicModelDependencyError for the given cycle.
func ErrCyclicModelDependency(cycle ...string) *CyclicModelDependencyError {
	return &CyclicModelDependencyError{Cycle: append([]string(nil), cycle...)}
}

// ErrInternalInconsistency creates an InternalInconsistencyError with a formatted message.
func ErrInternalInconsistency(format string, args ...interface{}) *InternalInconsistencyError {
	return &InternalInconsistencyError{Message: fmt.Sprintf(format, args...)}
}

// ErrTranslation creates a TranslationError with a formatted message.
func ErrTranslation(format string, args ...interface{}) *TranslationError {
	return &TranslationError{Message: fmt.Sprintf(format, args...)}
}

// Kind names the error's type for API clients and the CLI: "NotFound",
// "Syntax", "CyclicModelDependency" and so on. Errors outside this package
// are "Internal".
func Kind(err error) string {
	var (
		notFound     *NotFoundError
		validation   *ValidationError
		conflict     *ConflictError
		syntax       *SyntaxError
		invalidModel *InvalidModelDefinitionError
		unknownRel   *UnknownRelationshipError
		unknownModel *UnknownModelError
		cycle        *CyclicModelDependencyError
		internal     *InternalInconsistencyError
		translation  *TranslationError
	)

	switch {
	case errors.As(err, &notFound):
		return "NotFound"
	case errors.As(err, &conflict):
		return "Conflict"
	case errors.As(err, &validation):
		return "Validation"
	case errors.As(err, &syntax):
		return "Syntax"
	case errors.As(err, &invalidModel):
		return "InvalidModelDefinition"
	case errors.As(err, &unknownRel):
		return "UnknownRelationship"
	case errors.As(err, &unknownModel):
		return "UnknownModel"
	case errors.As(err, &cycle):
		return "CyclicModelDependency"
	case errors.As(err, &internal):
		return "InternalInconsistency"
	case errors.As(err, &translation):
		return "Translation"
	default:
		return "Internal"
	}
}

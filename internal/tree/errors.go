package tree

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes tree errors.
type ErrorCode string

const (
	// ErrCodeNoSuchSlot indicates the slot key does not exist on the component.
	ErrCodeNoSuchSlot ErrorCode = "NO_SUCH_SLOT"

	// ErrCodeIncompatibleChild indicates the slot rule rejected the candidate.
	ErrCodeIncompatibleChild ErrorCode = "INCOMPATIBLE_CHILD"

	// ErrCodeInvalidAttach indicates an attach that would create a cycle
	// (the candidate is the node itself or one of its ancestors).
	ErrCodeInvalidAttach ErrorCode = "INVALID_ATTACH"

	// ErrCodeMissingDependency indicates a system requires a sibling system
	// the component does not declare.
	ErrCodeMissingDependency ErrorCode = "MISSING_DEPENDENCY"

	// ErrCodeUnknownSystem indicates a template names an unregistered type.
	ErrCodeUnknownSystem ErrorCode = "UNKNOWN_SYSTEM"

	// ErrCodeUnknownComponent indicates a component id is not defined.
	ErrCodeUnknownComponent ErrorCode = "UNKNOWN_COMPONENT"

	// ErrCodeReentrantBuild indicates Build was called from an event listener.
	ErrCodeReentrantBuild ErrorCode = "REENTRANT_BUILD"

	// ErrCodeDispatchDepth indicates nested dispatch exceeded the engine limit.
	ErrCodeDispatchDepth ErrorCode = "DISPATCH_DEPTH"

	// ErrCodeNotBuilt indicates an operation that needs a current build.
	ErrCodeNotBuilt ErrorCode = "NOT_BUILT"
)

// Error is a structured tree error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Component is the id of the component involved, if any.
	Component string

	// Path is the slot path of the node involved, if any.
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the code of a tree error anywhere in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Code, true
	}
	return "", false
}

func hasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsNoSuchSlot reports whether err is a NO_SUCH_SLOT error.
func IsNoSuchSlot(err error) bool { return hasCode(err, ErrCodeNoSuchSlot) }

// IsIncompatibleChild reports whether err is an INCOMPATIBLE_CHILD error.
func IsIncompatibleChild(err error) bool { return hasCode(err, ErrCodeIncompatibleChild) }

// IsInvalidAttach reports whether err is an INVALID_ATTACH error.
func IsInvalidAttach(err error) bool { return hasCode(err, ErrCodeInvalidAttach) }

// IsMissingDependency reports whether err is a MISSING_DEPENDENCY error.
func IsMissingDependency(err error) bool { return hasCode(err, ErrCodeMissingDependency) }

// IsReentrantBuild reports whether err is a REENTRANT_BUILD error.
func IsReentrantBuild(err error) bool { return hasCode(err, ErrCodeReentrantBuild) }

func newNoSuchSlot(n *Node, key string) *Error {
	return &Error{
		Code:      ErrCodeNoSuchSlot,
		Message:   fmt.Sprintf("component %s has no slot %q", n.component.ID, key),
		Component: n.component.ID,
		Path:      n.Path().String(),
	}
}

func newIncompatibleChild(n *Node, key string, child *Node) *Error {
	return &Error{
		Code:      ErrCodeIncompatibleChild,
		Message:   fmt.Sprintf("%s does not satisfy slot %q of %s", child.component.ID, key, n.component.ID),
		Component: child.component.ID,
		Path:      n.Path().String(),
	}
}

func newInvalidAttach(n *Node, key, reason string) *Error {
	return &Error{
		Code:      ErrCodeInvalidAttach,
		Message:   fmt.Sprintf("cannot attach into slot %q: %s", key, reason),
		Component: n.component.ID,
		Path:      n.Path().String(),
	}
}

func newMissingDependency(n *Node, id string) *Error {
	return &Error{
		Code:      ErrCodeMissingDependency,
		Message:   fmt.Sprintf("component %s has no system %q of the required type", n.component.ID, id),
		Component: n.component.ID,
		Path:      n.Path().String(),
	}
}

// LoadError reports that a saved tree could not be reconstructed.
// A load that fails returns no tree at all.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load tree: %v", e.Err)
	}
	return fmt.Sprintf("load tree at %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

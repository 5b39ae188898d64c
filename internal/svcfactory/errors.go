package svcfactory

import (
	"errors"
	"fmt"
)

// ErrServiceClosed is returned (or used to fail a queued request) once the
// owning factory has been closed: no further Apply can return a live
// service after Close.
var ErrServiceClosed = errors.New("wily: service closed")

// NoBrokersAvailable is synthesized when a Namer resolves a name to None
// or Some(∅). LocalDtab is attached only at the BindingFactory boundary,
// when the ambient local DTab is non-empty (§4.4); otherwise LocalDtab is
// the empty string and HasLocalDtab reports false.
type NoBrokersAvailable struct {
	Name      string
	LocalDtab string // rendered local DTab, empty if none attached
	hasLocal  bool
}

// NewNoBrokersAvailable constructs the base error with no local-DTab
// context attached.
func NewNoBrokersAvailable(name string) *NoBrokersAvailable {
	return &NoBrokersAvailable{Name: name}
}

// WithLocalDtab returns a copy enriched with local-DTab context. Per
// spec.md §4.4/§7, this is diagnostic context only; it must not change any
// other observable behavior.
func (e *NoBrokersAvailable) WithLocalDtab(rendered string) *NoBrokersAvailable {
	cp := *e
	cp.LocalDtab = rendered
	cp.hasLocal = true
	return &cp
}

// HasLocalDtab reports whether local-DTab context has been attached.
func (e *NoBrokersAvailable) HasLocalDtab() bool {
	return e.hasLocal
}

func (e *NoBrokersAvailable) Error() string {
	if e.hasLocal {
		return fmt.Sprintf("wily: no brokers available for %q (local dtab: %s)", e.Name, e.LocalDtab)
	}
	return fmt.Sprintf("wily: no brokers available for %q", e.Name)
}

// CancelledConnection wraps the caller-supplied cause of an interrupted
// pending Apply.
type CancelledConnection struct {
	Cause error
}

func (e *CancelledConnection) Error() string {
	return fmt.Sprintf("wily: connection cancelled: %v", e.Cause)
}

func (e *CancelledConnection) Unwrap() error {
	return e.Cause
}

package loader

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for loader failures.
var (
	// ErrModuleNotFound indicates a module was required but never registered.
	// The source data no longer matches what the run expects.
	ErrModuleNotFound = errors.New("module not found")

	// ErrDependencyCycle indicates a module transitively depends on itself.
	ErrDependencyCycle = errors.New("dependency cycle")
)

// ModuleNotFoundError reports an unknown module name.
type ModuleNotFoundError struct {
	Name       string
	RequiredBy string
}

func (e *ModuleNotFoundError) Error() string {
	if e.RequiredBy != "" {
		return fmt.Sprintf("unknown requirement %s (required by %s)", e.Name, e.RequiredBy)
	}
	return fmt.Sprintf("unknown requirement %s", e.Name)
}

func (e *ModuleNotFoundError) Unwrap() error {
	return ErrModuleNotFound
}

// CycleError reports the chain of modules that forms a cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Unwrap() error {
	return ErrDependencyCycle
}

// FactoryError wraps a failure raised while evaluating a module factory.
type FactoryError struct {
	Module string
	Err    error
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("evaluate %s: %v", e.Module, e.Err)
}

func (e *FactoryError) Unwrap() error {
	return e.Err
}

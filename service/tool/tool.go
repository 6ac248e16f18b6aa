// Package tool defines the contract agent tools implement and the registry
// and dispatcher the orchestrator uses to execute them.
package tool

import (
	"context"
	"fmt"
	"reflect"
)

// Service groups related tool methods under one name.
type Service interface {
	Name() string
	Methods() Signatures
	Method(name string) (Executable, error)
}

type Signatures []Signature

func (s Signatures) Lookup(name string) *Signature {
	for i := range s {
		sig := &s[i]
		if sig.Name == name {
			return sig
		}
	}
	return nil
}

// Signature describes one tool method.
type Signature struct {
	Name        string
	Description string
	Input       reflect.Type
	Output      reflect.Type
}

// Executable is a function that can be executed
type Executable func(ctx context.Context, input, output interface{}) error

func NewMethodNotFoundError(name string) error {
	return fmt.Errorf("method %v not found", name)
}

func NewInvalidInputError(in interface{}) error {
	return fmt.Errorf("invalid input %T", in)
}

func NewInvalidOutputError(out interface{}) error {
	return fmt.Errorf("invalid output %T", out)
}

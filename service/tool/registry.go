package tool

import (
	"strings"
	"sync"

	"github.com/viant/x"

	"github.com/plenum-ai/plenum/service/provider"
)

// DataTypeIniter lets a service register its input/output Go types when it
// is added to the registry.
type DataTypeIniter interface {
	InitTypes(registry *x.Registry)
}

// Registry holds the tool services available to agents.
type Registry struct {
	types    *x.Registry
	services map[string]Service
	mux      sync.RWMutex
}

// Types returns the Go type registry shared by registered services.
func (r *Registry) Types() *x.Registry {
	return r.types
}

// Register registers a service.
func (r *Registry) Register(service Service) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if typer, ok := service.(DataTypeIniter); ok {
		typer.InitTypes(r.types)
	}
	r.services[service.Name()] = service
}

// Lookup returns a service by name.
func (r *Registry) Lookup(name string) Service {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.services[name]
}

// Resolve maps an action name back to its service and signature. Both the
// canonical "service.method" form and the wire-safe "service_method" form
// used in model tool definitions are accepted.
func (r *Registry) Resolve(action string) (Service, *Signature) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	for _, service := range r.services {
		for _, sig := range service.Methods() {
			if strings.EqualFold(action, ActionName(service.Name(), sig.Name)) ||
				strings.EqualFold(action, WireName(service.Name(), sig.Name)) {
				signature := sig
				return service, &signature
			}
		}
	}
	return nil, nil
}

// Definitions builds model-facing tool definitions for the named actions.
// With no names it returns definitions for every registered method.
func (r *Registry) Definitions(names ...string) []provider.Tool {
	r.mux.RLock()
	defer r.mux.RUnlock()

	wanted := map[string]bool{}
	for _, name := range names {
		wanted[strings.ToLower(name)] = true
	}

	var out []provider.Tool
	for _, service := range r.services {
		for _, sig := range service.Methods() {
			if len(names) > 0 &&
				!wanted[strings.ToLower(ActionName(service.Name(), sig.Name))] &&
				!wanted[strings.ToLower(WireName(service.Name(), sig.Name))] &&
				!wanted[strings.ToLower(service.Name())] {
				continue
			}
			out = append(out, definition(service.Name(), &sig))
		}
	}
	return out
}

// Canonical maps any accepted action spelling to the "service.method" form;
// unknown actions are returned unchanged.
func (r *Registry) Canonical(action string) string {
	if service, sig := r.Resolve(action); service != nil {
		return ActionName(service.Name(), sig.Name)
	}
	return action
}

// ActionName returns the canonical "service.method" action name.
func ActionName(service, method string) string {
	return service + "." + method
}

// WireName returns the "service_method" form accepted by model APIs, which
// reject dots in tool names.
func WireName(service, method string) string {
	return service + "_" + method
}

// New creates a tool registry, registering any provided Go types.
func New(goTypes ...*x.Type) *Registry {
	ret := &Registry{
		types:    x.NewRegistry(),
		services: make(map[string]Service),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}

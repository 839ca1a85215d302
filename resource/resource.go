// Package resource maps each backend resource to its REST endpoints.
//
// A Definition names a resource and lists one Endpoint per operation; a
// Service turns a typed request into exactly one HTTP call on that endpoint.
// Services never cache and never catch errors.
package resource

import (
	"net/http"
	"sort"

	"github.com/dailyyoga/studysync/httpclient"
	"github.com/dailyyoga/studysync/querykey"
)

// Op is a service operation
type Op string

const (
	OpList   Op = "list"
	OpGet    Op = "get"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Endpoint is one fixed path template: /<domain>/<action> or /<domain>/<action>/:id
type Endpoint struct {
	Method string
	Action string
	WithID bool
}

// Definition describes one resource
type Definition struct {
	// Name is the cache key namespace, e.g. "expenses"
	Name string
	// Label is the singular name shown to users, e.g. "Expense"
	Label string
	// Domain is the first path segment, e.g. "expense-tracker"
	Domain string

	Endpoints map[Op]Endpoint
}

// Keys returns the query key registry of the resource
func (d Definition) Keys() querykey.Keys {
	return querykey.For(d.Name)
}

// Endpoint returns the endpoint of op, if the resource has one
func (d Definition) Endpoint(op Op) (Endpoint, bool) {
	ep, ok := d.Endpoints[op]
	return ep, ok
}

// Supports reports whether op has an endpoint
func (d Definition) Supports(op Op) bool {
	_, ok := d.Endpoints[op]
	return ok
}

// Path resolves the path of op for id; id is ignored by endpoints without one
func (d Definition) Path(op Op, id string) (string, error) {
	ep, ok := d.Endpoints[op]
	if !ok {
		return "", ErrNotSupported(d.Name, op)
	}
	if !ep.WithID {
		return httpclient.Path(d.Domain, ep.Action), nil
	}
	if id == "" {
		return "", ErrEmptyID
	}
	return httpclient.Path(d.Domain, ep.Action, id), nil
}

// crud builds the conventional endpoint set: get-<plural>, get-<singular>/:id,
// create-<singular>, update-<singular>/:id, delete-<singular>/:id
func crud(singular, plural string, ops ...Op) map[Op]Endpoint {
	all := map[Op]Endpoint{
		OpList:   {Method: http.MethodGet, Action: "get-" + plural},
		OpGet:    {Method: http.MethodGet, Action: "get-" + singular, WithID: true},
		OpCreate: {Method: http.MethodPost, Action: "create-" + singular},
		OpUpdate: {Method: http.MethodPut, Action: "update-" + singular, WithID: true},
		OpDelete: {Method: http.MethodDelete, Action: "delete-" + singular, WithID: true},
	}
	if len(ops) == 0 {
		return all
	}
	out := make(map[Op]Endpoint, len(ops))
	for _, op := range ops {
		out[op] = all[op]
	}
	return out
}

var registry = map[string]Definition{}

func register(d Definition) Definition {
	registry[d.Name] = d
	return d
}

// Lookup returns the definition registered under name
func Lookup(name string) (Definition, error) {
	d, ok := registry[name]
	if !ok {
		return Definition{}, ErrNotFound(name)
	}
	return d, nil
}

// Definitions returns every registered definition sorted by name
func Definitions() []Definition {
	out := make([]Definition, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

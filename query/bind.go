package query

import (
	"context"

	"github.com/dailyyoga/studysync/cache"
	"github.com/dailyyoga/studysync/querykey"
	"github.com/dailyyoga/studysync/resource"
)

// UpdateInput addresses an update to one entity
type UpdateInput[U any] struct {
	ID   string
	Data U
}

// Resource exposes a resource service as cached queries and reconciling mutations
type Resource[T resource.Entity, F, C, U any] struct {
	client *Client
	svc    *resource.Service[T, F, C, U]
	keys   querykey.Keys
	opts   []cache.FetchOption
}

// Bind creates the query bindings of svc; opts apply to every read
func Bind[T resource.Entity, F, C, U any](c *Client, svc *resource.Service[T, F, C, U], opts ...cache.FetchOption) *Resource[T, F, C, U] {
	return &Resource[T, F, C, U]{
		client: c,
		svc:    svc,
		keys:   svc.Definition().Keys(),
		opts:   opts,
	}
}

// Keys returns the resource's key registry
func (r *Resource[T, F, C, U]) Keys() querykey.Keys {
	return r.keys
}

// Definition returns the resource definition
func (r *Resource[T, F, C, U]) Definition() resource.Definition {
	return r.svc.Definition()
}

// List returns the query of the list matching filter
func (r *Resource[T, F, C, U]) List(filter F) *Query[[]T] {
	return New[[]T](r.client, r.keys.List(filter), func(ctx context.Context) ([]T, error) {
		return r.svc.List(ctx, filter)
	}, r.opts...)
}

// Detail returns the query of one entity
func (r *Resource[T, F, C, U]) Detail(id string) *Query[T] {
	return New[T](r.client, r.keys.Detail(id), func(ctx context.Context) (T, error) {
		return r.svc.Get(ctx, id)
	}, r.opts...)
}

// Create returns the create mutation; the created entity is patched into its detail key
func (r *Resource[T, F, C, U]) Create() *Mutation[C, T] {
	return NewMutation[C, T](r.client, r.svc.Definition(), resource.OpCreate, r.svc.Create,
		func(_ C, out T) string { return out.Identity() }, true)
}

// Update returns the update mutation; the updated entity is patched into its detail key
func (r *Resource[T, F, C, U]) Update() *Mutation[UpdateInput[U], T] {
	return NewMutation[UpdateInput[U], T](r.client, r.svc.Definition(), resource.OpUpdate,
		func(ctx context.Context, in UpdateInput[U]) (T, error) {
			return r.svc.Update(ctx, in.ID, in.Data)
		},
		func(in UpdateInput[U], out T) string {
			if id := out.Identity(); id != "" {
				return id
			}
			return in.ID
		}, true)
}

// Delete returns the delete mutation; the deleted entity's detail is dropped
func (r *Resource[T, F, C, U]) Delete() *Mutation[string, struct{}] {
	return NewMutation[string, struct{}](r.client, r.svc.Definition(), resource.OpDelete,
		func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, r.svc.Delete(ctx, id)
		},
		func(id string, _ struct{}) string { return id }, false)
}

package resource

import (
	"context"

	"github.com/dailyyoga/studysync/httpclient"
)

// Entity is implemented by every model; the id addresses its detail key
type Entity interface {
	Identity() string
}

// Service performs the CRUD calls of one resource.
// T is the entity, F the list filter, C the create payload and U the update payload.
type Service[T, F, C, U any] struct {
	def    Definition
	client httpclient.Client
}

// NewService binds a definition to a client
func NewService[T, F, C, U any](client httpclient.Client, def Definition) *Service[T, F, C, U] {
	return &Service[T, F, C, U]{def: def, client: client}
}

// Definition returns the resource definition
func (s *Service[T, F, C, U]) Definition() Definition {
	return s.def
}

// List fetches the entities matching filter
func (s *Service[T, F, C, U]) List(ctx context.Context, filter F) ([]T, error) {
	path, err := s.def.Path(OpList, "")
	if err != nil {
		return nil, err
	}
	query, err := httpclient.EncodeQuery(filter)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := s.client.Do(ctx, &httpclient.Request{Method: s.method(OpList), Path: path, Query: query}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one entity
func (s *Service[T, F, C, U]) Get(ctx context.Context, id string) (T, error) {
	var out T
	path, err := s.def.Path(OpGet, id)
	if err != nil {
		return out, err
	}
	err = s.client.Do(ctx, &httpclient.Request{Method: s.method(OpGet), Path: path}, &out)
	return out, err
}

// Create sends in and returns the created entity
func (s *Service[T, F, C, U]) Create(ctx context.Context, in C) (T, error) {
	var out T
	path, err := s.def.Path(OpCreate, "")
	if err != nil {
		return out, err
	}
	err = s.client.Do(ctx, &httpclient.Request{Method: s.method(OpCreate), Path: path, Body: in}, &out)
	return out, err
}

// Update sends in for id and returns the updated entity
func (s *Service[T, F, C, U]) Update(ctx context.Context, id string, in U) (T, error) {
	var out T
	path, err := s.def.Path(OpUpdate, id)
	if err != nil {
		return out, err
	}
	err = s.client.Do(ctx, &httpclient.Request{Method: s.method(OpUpdate), Path: path, Body: in}, &out)
	return out, err
}

// Delete removes id
func (s *Service[T, F, C, U]) Delete(ctx context.Context, id string) error {
	path, err := s.def.Path(OpDelete, id)
	if err != nil {
		return err
	}
	return s.client.Do(ctx, &httpclient.Request{Method: s.method(OpDelete), Path: path}, nil)
}

func (s *Service[T, F, C, U]) method(op Op) string {
	return s.def.Endpoints[op].Method
}

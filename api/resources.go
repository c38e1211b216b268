package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"readingroom/domain"
)

// Service is the sub-client for one REST resource. T is the entity returned
// by the server and D the draft sent on create and update.
type Service[T any, D any] struct {
	c    *Client
	name string
}

// NewService returns a sub-client for the resource mounted at /name/.
func NewService[T any, D any](c *Client, name string) *Service[T, D] {
	return &Service[T, D]{c: c, name: name}
}

// Name is the resource path segment, e.g. "students".
func (s *Service[T, D]) Name() string { return s.name }

// GetAll lists the resource. params are passed as query filters.
func (s *Service[T, D]) GetAll(ctx context.Context, params url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := s.c.call(ctx, http.MethodGet, path(s.name), params, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[T](raw)
}

func (s *Service[T, D]) GetByID(ctx context.Context, id string) (T, error) {
	var out T
	err := s.c.call(ctx, http.MethodGet, path(s.name, id), nil, nil, &out)
	return out, err
}

func (s *Service[T, D]) Create(ctx context.Context, draft D) (T, error) {
	var out T
	err := s.c.call(ctx, http.MethodPost, path(s.name), nil, draft, &out)
	return out, err
}

func (s *Service[T, D]) Update(ctx context.Context, id string, draft D) (T, error) {
	var out T
	err := s.c.call(ctx, http.MethodPut, path(s.name, id), nil, draft, &out)
	return out, err
}

func (s *Service[T, D]) Delete(ctx context.Context, id string) error {
	return s.c.call(ctx, http.MethodDelete, path(s.name, id), nil, nil, nil)
}

// decodeList accepts a bare JSON array or a paginated {"results": [...]} page.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		out := []T{}
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("api: decode list: %w", err)
		}
		return out, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("api: decode page: %w", err)
	}
	if page.Results == nil {
		page.Results = []T{}
	}
	return page.Results, nil
}

func Students(c *Client) *Service[domain.Student, domain.StudentDraft] {
	return NewService[domain.Student, domain.StudentDraft](c, "students")
}

func Resources(c *Client) *Service[domain.Resource, domain.ResourceDraft] {
	return NewService[domain.Resource, domain.ResourceDraft](c, "resources")
}

func Borrows(c *Client) *Service[domain.BorrowRecord, domain.BorrowDraft] {
	return NewService[domain.BorrowRecord, domain.BorrowDraft](c, "borrows")
}

func Returns(c *Client) *Service[domain.ReturnRecord, domain.ReturnDraft] {
	return NewService[domain.ReturnRecord, domain.ReturnDraft](c, "returns")
}

func Users(c *Client) *Service[domain.User, domain.UserDraft] {
	return NewService[domain.User, domain.UserDraft](c, "users")
}

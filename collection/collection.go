// Package collection holds the managed client-side copy of one server
// resource: fetch, search, create, update and delete, always re-fetching the
// full list after a confirmed write.
package collection

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"readingroom/api"
	"readingroom/domain"
	"readingroom/search"
)

// ErrNotConfirmed is returned by Delete when the user declines.
var ErrNotConfirmed = errors.New("collection: delete not confirmed")

// Source is the remote side of a collection. *api.Service satisfies it.
type Source[T any, D any] interface {
	GetAll(ctx context.Context, params url.Values) ([]T, error)
	Create(ctx context.Context, draft D) (T, error)
	Update(ctx context.Context, id string, draft D) (T, error)
	Delete(ctx context.Context, id string) error
}

// Config names the entity and how to key and search it.
type Config[T any] struct {
	Noun   string // "student"
	Plural string // "students"
	Key    func(T) string
	Fields []search.Field[T]
	Params url.Values // fixed list filters, e.g. status=ACTIVE
}

// Status is the fetch state of a collection.
type Status int

const (
	Idle Status = iota
	Loading
	Error
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// Failure is a user-facing error produced by a write. Err is the cause.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string { return f.Message }
func (f *Failure) Unwrap() error { return f.Err }

// Collection is the list controller for one entity type.
type Collection[T any, D any] struct {
	src    Source[T, D]
	cfg    Config[T]
	logger *zap.Logger

	mu       sync.Mutex
	items    []T
	filtered []T
	term     string
	status   Status
	lastErr  string
}

func New[T any, D any](src Source[T, D], cfg Config[T], logger *zap.Logger) *Collection[T, D] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collection[T, D]{
		src:      src,
		cfg:      cfg,
		logger:   logger.With(zap.String("collection", cfg.Plural)),
		items:    []T{},
		filtered: []T{},
	}
}

// Noun returns the singular entity name.
func (c *Collection[T, D]) Noun() string { return c.cfg.Noun }

// Plural returns the plural entity name.
func (c *Collection[T, D]) Plural() string { return c.cfg.Plural }

// Refresh replaces the item list with the server's. On failure the previous
// items are kept and the status records the error.
func (c *Collection[T, D]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.status = Loading
	c.mu.Unlock()

	items, err := c.src.GetAll(ctx, c.cfg.Params)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.status = Error
		c.lastErr = "Failed to fetch " + c.cfg.Plural
		c.logger.Warn("Refresh failed", zap.Error(err))
		return fmt.Errorf("%s: %w", c.lastErr, err)
	}
	if items == nil {
		items = []T{}
	}
	c.items = items
	c.filtered = search.Filter(c.items, c.term, c.cfg.Fields...)
	c.status = Idle
	c.lastErr = ""
	c.logger.Debug("Refreshed", zap.Int("count", len(items)))
	return nil
}

// Create validates draft and sends it. The list is re-fetched on success;
// a failed re-fetch does not undo the write and only shows in Status.
func (c *Collection[T, D]) Create(ctx context.Context, draft D) (T, error) {
	var zero T
	if err := domain.Validate(&draft); err != nil {
		return zero, err
	}
	saved, err := c.src.Create(ctx, draft)
	if err != nil {
		return zero, c.saveFailure(err)
	}
	c.logger.Info("Created", zap.String("key", c.key(saved)))
	_ = c.Refresh(ctx)
	return saved, nil
}

// Update validates draft and replaces the record with key id.
func (c *Collection[T, D]) Update(ctx context.Context, id string, draft D) (T, error) {
	var zero T
	if err := domain.Validate(&draft); err != nil {
		return zero, err
	}
	saved, err := c.src.Update(ctx, id, draft)
	if err != nil {
		return zero, c.saveFailure(err)
	}
	c.logger.Info("Updated", zap.String("key", id))
	_ = c.Refresh(ctx)
	return saved, nil
}

// Delete removes the record with key id after confirm agrees.
func (c *Collection[T, D]) Delete(ctx context.Context, id string, confirm func(prompt string) bool) error {
	if confirm == nil || !confirm(fmt.Sprintf("Are you sure you want to delete this %s?", c.cfg.Noun)) {
		return ErrNotConfirmed
	}
	if err := c.src.Delete(ctx, id); err != nil {
		c.logger.Warn("Delete failed", zap.String("key", id), zap.Error(err))
		msg := "Failed to delete " + c.cfg.Noun
		if api.KindOf(err) == api.KindForbidden {
			msg = c.forbidden()
		}
		return &Failure{Message: msg, Err: err}
	}
	c.logger.Info("Deleted", zap.String("key", id))
	_ = c.Refresh(ctx)
	return nil
}

// Reset drops loaded items and the search term, e.g. after logout.
func (c *Collection[T, D]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items, c.filtered = []T{}, []T{}
	c.term, c.status, c.lastErr = "", Idle, ""
}

// Search sets the term and recomputes the filtered view. No fetch happens.
func (c *Collection[T, D]) Search(term string) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.term = term
	c.filtered = search.Filter(c.items, term, c.cfg.Fields...)
	return append([]T(nil), c.filtered...)
}

func (c *Collection[T, D]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

func (c *Collection[T, D]) Filtered() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.filtered...)
}

func (c *Collection[T, D]) Term() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.term
}

// Find returns the loaded record with the given key.
func (c *Collection[T, D]) Find(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if c.key(it) == key {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (c *Collection[T, D]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastError is the user-facing message of the last failed fetch, or "".
func (c *Collection[T, D]) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Collection[T, D]) key(it T) string {
	if c.cfg.Key == nil {
		return ""
	}
	return c.cfg.Key(it)
}

func (c *Collection[T, D]) forbidden() string {
	return fmt.Sprintf("Permission denied: You do not have rights to add or edit %s.", c.cfg.Plural)
}

func (c *Collection[T, D]) saveFailure(err error) *Failure {
	c.logger.Warn("Save failed", zap.Error(err))
	msg := "Failed to save " + c.cfg.Noun
	switch api.KindOf(err) {
	case api.KindForbidden:
		msg = c.forbidden()
	case api.KindUnauthorized:
		msg = "Authentication required: please log in again."
	case api.KindValidation:
		var ae *api.Error
		if errors.As(err, &ae) && ae.PayloadText() != "" {
			msg = fmt.Sprintf("Failed to save %s: %s", c.cfg.Noun, ae.PayloadText())
		}
	}
	return &Failure{Message: msg, Err: err}
}

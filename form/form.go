// Package form is the add/edit modal workflow shared by every entity screen.
package form

import (
	"context"
	"errors"
	"sync"

	"readingroom/domain"
)

// ErrSaving is returned by any transition attempted while a save is in flight.
var ErrSaving = errors.New("form: save in progress")

// ErrClosed is returned by Edit and Save when the form is not open.
var ErrClosed = errors.New("form: not open")

type State int

const (
	Closed State = iota
	Adding
	Editing
	Saving
)

func (s State) String() string {
	switch s {
	case Adding:
		return "adding"
	case Editing:
		return "editing"
	case Saving:
		return "saving"
	default:
		return "closed"
	}
}

// Saver persists a draft. Create is used when adding, Update when editing.
type Saver[T any, D any] interface {
	Create(ctx context.Context, draft D) (T, error)
	Update(ctx context.Context, id string, draft D) (T, error)
}

// Form holds a draft that is a value copy, never an alias of a listed entity.
type Form[T any, D any] struct {
	saver   Saver[T, D]
	toDraft func(T) D
	key     func(T) string

	mu      sync.Mutex
	state   State
	resume  State
	draft   D
	editKey string
	err     error
}

func New[T any, D any](saver Saver[T, D], toDraft func(T) D, key func(T) string) *Form[T, D] {
	return &Form[T, D]{saver: saver, toDraft: toDraft, key: key}
}

// OpenAdd opens an empty (or seeded) draft.
func (f *Form[T, D]) OpenAdd(seed D) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Saving {
		return ErrSaving
	}
	f.state, f.draft, f.editKey, f.err = Adding, seed, "", nil
	return nil
}

// OpenEdit snapshots target into the draft.
func (f *Form[T, D]) OpenEdit(target T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Saving {
		return ErrSaving
	}
	f.state, f.draft, f.editKey, f.err = Editing, f.toDraft(target), f.key(target), nil
	return nil
}

// Edit mutates the draft in place.
func (f *Form[T, D]) Edit(fn func(*D)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case Saving:
		return ErrSaving
	case Closed:
		return ErrClosed
	}
	fn(&f.draft)
	return nil
}

// Draft returns a copy of the current draft.
func (f *Form[T, D]) Draft() D {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Save validates and submits the draft. On success the form closes; on
// failure it stays open with Err set.
func (f *Form[T, D]) Save(ctx context.Context) (T, error) {
	var zero T
	f.mu.Lock()
	switch f.state {
	case Saving:
		f.mu.Unlock()
		return zero, ErrSaving
	case Closed:
		f.mu.Unlock()
		return zero, ErrClosed
	}
	draft := f.draft
	if err := domain.Validate(&draft); err != nil {
		f.err = err
		f.mu.Unlock()
		return zero, err
	}
	f.resume, f.state, f.err = f.state, Saving, nil
	adding, key := f.resume == Adding, f.editKey
	f.mu.Unlock()

	var (
		saved T
		err   error
	)
	if adding {
		saved, err = f.saver.Create(ctx, draft)
	} else {
		saved, err = f.saver.Update(ctx, key, draft)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state, f.err = f.resume, err
		return zero, err
	}
	var empty D
	f.state, f.draft, f.editKey = Closed, empty, ""
	return saved, nil
}

// Cancel discards the draft.
func (f *Form[T, D]) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Saving {
		return ErrSaving
	}
	var empty D
	f.state, f.draft, f.editKey, f.err = Closed, empty, "", nil
	return nil
}

func (f *Form[T, D]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// EditKey is the key of the record being edited, or "".
func (f *Form[T, D]) EditKey() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editKey
}

// Err is the message of the last failed save, shown inside the open form.
func (f *Form[T, D]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Package outcome models the result of an asynchronous operation as data.
package outcome

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the active tag of an Outcome.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ErrUnknown stands in for a failure reported without a cause.
var ErrUnknown = errors.New("unknown error")

// Outcome is one of Idle, Loading, Success(value) or Error(cause).
// The zero value is Idle.
type Outcome[T any] struct {
	status Status
	value  T
	err    error
}

func Idle[T any]() Outcome[T] {
	return Outcome[T]{status: StatusIdle}
}

func Loading[T any]() Outcome[T] {
	return Outcome[T]{status: StatusLoading}
}

func Success[T any](v T) Outcome[T] {
	return Outcome[T]{status: StatusSuccess, value: v}
}

// Failure returns an Error outcome. A nil err is replaced with ErrUnknown.
func Failure[T any](err error) Outcome[T] {
	if err == nil {
		err = ErrUnknown
	}
	return Outcome[T]{status: StatusError, err: err}
}

// From turns a (value, error) pair into Success or Failure.
func From[T any](v T, err error) Outcome[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

func (o Outcome[T]) Status() Status { return o.status }

// Value returns the payload and true only for Success.
func (o Outcome[T]) Value() (T, bool) {
	if o.status != StatusSuccess {
		var zero T
		return zero, false
	}
	return o.value, true
}

// Err returns the cause of an Error outcome, nil otherwise.
func (o Outcome[T]) Err() error { return o.err }

func (o Outcome[T]) IsSuccess() bool { return o.status == StatusSuccess }

func (o Outcome[T]) String() string {
	switch o.status {
	case StatusSuccess:
		return fmt.Sprintf("success(%v)", o.value)
	case StatusError:
		return fmt.Sprintf("error(%v)", o.err)
	default:
		return o.status.String()
	}
}

// Map transforms the payload of a Success, keeping every other tag.
func Map[T, U any](o Outcome[T], fn func(T) U) Outcome[U] {
	switch o.status {
	case StatusSuccess:
		return Success(fn(o.value))
	case StatusError:
		return Failure[U](o.err)
	case StatusLoading:
		return Loading[U]()
	default:
		return Idle[U]()
	}
}

// Equal reports whether a and b carry the same tag, payload and error text.
func Equal[T comparable](a, b Outcome[T]) bool {
	return EqualFunc(a, b, func(x, y T) bool { return x == y })
}

// EqualFunc is Equal with a caller supplied payload comparison.
func EqualFunc[T any](a, b Outcome[T], eq func(T, T) bool) bool {
	if a.status != b.status {
		return false
	}
	switch a.status {
	case StatusSuccess:
		return eq(a.value, b.value)
	case StatusError:
		return a.err.Error() == b.err.Error()
	default:
		return true
	}
}

type wireOutcome[T any] struct {
	Status string `json:"status"`
	Value  *T     `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	w := wireOutcome[T]{Status: o.status.String()}
	switch o.status {
	case StatusSuccess:
		v := o.value
		w.Value = &v
	case StatusError:
		w.Error = o.err.Error()
	}
	return json.Marshal(w)
}

func (o *Outcome[T]) UnmarshalJSON(data []byte) error {
	var w wireOutcome[T]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Status {
	case "idle", "":
		*o = Idle[T]()
	case "loading":
		*o = Loading[T]()
	case "success":
		var v T
		if w.Value != nil {
			v = *w.Value
		}
		*o = Success(v)
	case "error":
		if w.Error == "" {
			*o = Failure[T](nil)
		} else {
			*o = Failure[T](errors.New(w.Error))
		}
	default:
		return fmt.Errorf("unknown outcome status %q", w.Status)
	}
	return nil
}

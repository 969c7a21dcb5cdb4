// Package assert holds test assertions shared by the packages of this module.
// Waits are bounded by the package timeout.
package assert

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

// ChanWritten returns the value written to chan c or times out.
func ChanWritten[T any](t testing.TB, c chan T) T {
	t.Helper()
	var v T
	select {
	case v = <-c:
	case <-time.After(timeout):
		t.Fatal("timeout waiting for chan read")
	}
	return v
}

// ChanWrittenWithVal asserts the chan c was written with a value that
// DeepEquals v.
func ChanWrittenWithVal[T any](t testing.TB, c chan T, want T) T {
	t.Helper()
	var got T
	select {
	case got = <-c:
	case <-time.After(timeout):
		t.Fatal("timeout waiting for chan read")
	}
	DeepEqual(t, got, want)
	return got
}

// ChanNotWritten asserts that the chan is not written at least until the passed
// timeout value.
func ChanNotWritten[T any](t testing.TB, c chan T, timeout time.Duration) {
	t.Helper()
	select {
	case v := <-c:
		t.Fatalf("channel was written with value %v", v)
	case <-time.After(timeout):
	}
}

// WriteChan attempts to send v to c.
func WriteChan[T any](t testing.TB, c chan T, v T) {
	t.Helper()
	select {
	case c <- v:
	case <-time.After(timeout):
		t.Fatalf("Timeout waiting to send to chan")
	}
}

// DeepEqual asserts got is reflect.DeepEqual to want.
func DeepEqual[T any](t testing.TB, got, want T) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Unexpected values: got %v, want %v", got, want)
	}
}

// ErrorIs asserts that errors.Is(got, want).
func ErrorIs(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Fatalf("Unexpected error: got %v, want %v", got, want)
	}
}

// NilErr fails the test if err is non-nil.
func NilErr(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected non-nil error: %v", err)
	}
}

// NonNilErr asserts that err is not nil. It's preferable to use a specific
// error check instead of this one.
func NonNilErr(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("unexpected nil error")
	}
}

// DoesNotBlock asserts that calling f() returns before the package timeout.
// Used to check that shutdown paths are bounded.
func DoesNotBlock(t testing.TB, f func()) {
	t.Helper()
	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	go func() {
		f()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timeout waiting for function to finish")
	}
}

// BoolIs asserts the given bool value.
func BoolIs(t testing.TB, got, want bool) {
	t.Helper()
	if got != want {
		t.Fatalf("unexpected bool. got %v, want %v", got, want)
	}
}

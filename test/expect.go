// This file is part of Ultragopher.
//
// Ultragopher is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Ultragopher is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Ultragopher.  If not, see <https://www.gnu.org/licenses/>.

package test

import (
	"testing"
	"time"
)

// ExpectEquality is used to test equality between one value and another.
func ExpectEquality[T comparable](t *testing.T, value T, expectedValue T) bool {
	t.Helper()
	if value != expectedValue {
		t.Errorf("equality test of type %T failed: '%v' does not equal '%v'", value, value, expectedValue)
		return false
	}
	return true
}

// ExpectInequality is used to test inequality between one value and another.
// ie. the test does not want the values to be equal.
func ExpectInequality[T comparable](t *testing.T, value T, expectedValue T) bool {
	t.Helper()
	if value == expectedValue {
		t.Errorf("inequality test of type %T failed: '%v' does equal '%v'", value, value, expectedValue)
		return false
	}
	return true
}

// DemandEquality is the same as ExpectEquality but is a testing fatality on
// failure.
//
// This is particularly useful if the value being tested is used in further
// tests and so must be correct. For example, testing that the lengths of two
// slices are equal before iterating over them in unison.
func DemandEquality[T comparable](t *testing.T, value T, expectedValue T) {
	t.Helper()
	if value != expectedValue {
		t.Fatalf("equality test of type %T failed: '%v' does not equal '%v'", value, value, expectedValue)
	}
}

// expect tests argument v for a success condition suitable for its type:
//
//	bool  -> bool == true
//	error -> error == nil
//
// If the type is nil then the test is successful.
func expect(t *testing.T, v any) bool {
	t.Helper()

	switch v := v.(type) {
	case bool:
		return v
	case error:
		return v == nil
	case nil:
		return true
	default:
		t.Fatalf("unsupported type (%T) for expectation testing", v)
	}

	return false
}

// ExpectSuccess tests argument v for a success condition suitable for its
// type. Supported types are bool (success = true), error (success = nil) and
// nil (always a success).
func ExpectSuccess(t *testing.T, v any) bool {
	t.Helper()
	if !expect(t, v) {
		t.Errorf("expected success of type %T (%v)", v, v)
		return false
	}
	return true
}

// ExpectFailure tests argument v for a failure condition suitable for its
// type. See ExpectSuccess() for the list of supported types.
func ExpectFailure(t *testing.T, v any) bool {
	t.Helper()
	if expect(t, v) {
		t.Errorf("expected failure of type %T (%v)", v, v)
		return false
	}
	return true
}

// DemandSuccess is the same as ExpectSuccess but is a testing fatality on
// failure.
func DemandSuccess(t *testing.T, v any) {
	t.Helper()
	if !expect(t, v) {
		t.Fatalf("demanded success of type %T (%v)", v, v)
	}
}

// the amount of time ExpectCompletion and ExpectTimeout will wait before
// giving up on the channel. generous because a loaded test machine can stall
// a goroutine for a surprisingly long time.
const completionTimeout = 5 * time.Second

// ExpectCompletion waits for the channel to yield or close within a bounded
// amount of time. A test using ExpectCompletion will never hang.
func ExpectCompletion[T any](t *testing.T, ch <-chan T) bool {
	t.Helper()
	select {
	case <-ch:
		return true
	case <-time.After(completionTimeout):
		t.Errorf("expected completion on channel of type %T", ch)
	}
	return false
}

// ExpectTimeout is the opposite of ExpectCompletion. It gives the channel a
// short grace period and asserts that it does not yield in that time.
func ExpectTimeout[T any](t *testing.T, ch <-chan T, grace time.Duration) bool {
	t.Helper()
	select {
	case <-ch:
		t.Errorf("expected timeout on channel of type %T", ch)
	case <-time.After(grace):
		return true
	}
	return false
}

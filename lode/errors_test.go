package lode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "dial: i/o wait" }
func (timeoutError) Timeout() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"deadline", fmt.Errorf("put: %w", context.DeadlineExceeded), ErrTimeout},
		{"timeout interface", timeoutError{}, ErrTimeout},
		{"fs permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, ErrPermissionDenied},
		{"fs not exist", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, ErrNotFound},
		{"enospc", &fs.PathError{Op: "write", Path: "/x", Err: syscall.ENOSPC}, ErrDiskFull},
		{"permission message", errors.New("EACCES: permission denied"), ErrPermissionDenied},
		{"s3 access denied", errors.New("AccessDenied: access denied (403)"), ErrAccessDenied},
		{"no such key", errors.New("NoSuchKey: the key is missing"), ErrNotFound},
		{"quota", errors.New("quota exceeded for bucket"), ErrDiskFull},
		{"timed out", errors.New("request timed out"), ErrTimeout},
		{"slowdown", errors.New("SlowDown: reduce rate"), ErrThrottled},
		{"expired token", errors.New("ExpiredToken: token has expired"), ErrAuth},
		{"forbidden", errors.New("Forbidden"), ErrAccessDenied},
		{"connection refused", errors.New("dial tcp 127.0.0.1:9000: connection refused"), ErrNetwork},
		{"unclassified", errors.New("something odd"), errUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrap_Nil(t *testing.T) {
	if WrapWriteError(nil, "p") != nil || WrapReadError(nil, "p") != nil || WrapInitError(nil, "d") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestStorageError(t *testing.T) {
	cause := errors.New("SlowDown: reduce rate")
	err := WrapWriteError(cause, "sluice/database=shop")

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if se.Op != "write" || se.Path != "sluice/database=shop" {
		t.Errorf("op/path = %q/%q", se.Op, se.Path)
	}
	if !errors.Is(err, ErrThrottled) {
		t.Error("errors.Is(err, ErrThrottled) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("cause lost from chain")
	}
	want := "write sluice/database=shop: rate limited: SlowDown: reduce rate"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	noPath := NewStorageError(ErrAuth, "init", "", cause)
	if noPath.Error() != "init: authentication failed: SlowDown: reduce rate" {
		t.Errorf("Error() = %q", noPath.Error())
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{WrapWriteError(errors.New("request timed out"), ""), true},
		{WrapWriteError(errors.New("SlowDown"), ""), true},
		{WrapWriteError(errors.New("connection refused"), ""), true},
		{WrapWriteError(errors.New("no space left on device"), ""), false},
		{WrapWriteError(errors.New("ExpiredToken"), ""), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

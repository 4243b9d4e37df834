package store

import "errors"

// ErrNotFound indicates a missing record lookup.
var ErrNotFound = errors.New("record not found")

// ErrRemoteIDTaken indicates another contact already claimed the remote id.
var ErrRemoteIDTaken = errors.New("remote id already claimed by another contact")

// ErrRemoteIDImmutable indicates an attempt to replace an assigned remote id.
var ErrRemoteIDImmutable = errors.New("remote id is immutable once assigned")

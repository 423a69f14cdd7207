package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")
var ErrCannotSet = errors.New("error set key")

const (
	BackendFile     = "file"
	BackendPebble   = "pebble"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

//go:generate go run go.uber.org/mock/mockgen -source=kv.go -destination=mocks/mock.go

// Store is a string-keyed slot store. Set overwrites the whole value.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

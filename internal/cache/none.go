package cache

import (
	"context"
	"time"
)

// None es un Client que nunca guarda nada.
type None struct{}

func (None) Get(context.Context, string) (string, error) { return "", ErrNotFound }

func (None) Set(context.Context, string, string, time.Duration) error { return nil }

func (None) Delete(context.Context, string) error { return nil }

func (None) Ping(context.Context) error { return nil }

func (None) Close() error { return nil }

func (None) Stats(context.Context) (Stats, error) { return Stats{Driver: "none"}, nil }

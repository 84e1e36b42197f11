// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(_ context.Context, _ *Execution) error {
	return nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Behavior{
		Name:    "Look",
		Handler: noopHandler,
		Help:    "Look at your surroundings",
		Usage:   "look [object]",
	}))

	got, ok := reg.Get("look")
	require.True(t, ok)
	assert.Equal(t, "look", got.Name, "names are lower-cased")
	assert.Equal(t, "look [object]", got.Usage)

	got, ok = reg.Get("LOOK")
	assert.True(t, ok)
	assert.Equal(t, "Look at your surroundings", got.Help)

	_, ok = reg.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(Behavior{Name: " ", Handler: noopHandler}))
	assert.Error(t, reg.Register(Behavior{Name: "look"}))
	assert.Empty(t, reg.Names())
	assert.Panics(t, func() { reg.MustRegister(Behavior{Name: "bad"}) })
}

func TestRegistry_AllSorted(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(
		Behavior{Name: "say", Handler: noopHandler},
		Behavior{Name: "emote", Handler: noopHandler},
		Behavior{Name: "look", Handler: noopHandler},
	)
	assert.Equal(t, []string{"emote", "look", "say"}, reg.Names())
	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "emote", all[0].Name)
	assert.NotNil(t, NewRegistry().All())
}

func TestRegistry_OverwriteWarns(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	reg := NewRegistry()
	reg.MustRegister(Behavior{Name: "look", Help: "first", Handler: noopHandler})
	reg.MustRegister(Behavior{Name: "look", Help: "second", Handler: noopHandler})

	got, _ := reg.Get("look")
	assert.Equal(t, "second", got.Help)
	assert.Contains(t, buf.String(), "behavior conflict")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = reg.Register(Behavior{Name: "look", Handler: noopHandler})
		}()
		go func() {
			defer wg.Done()
			_, _ = reg.Get("look")
			_ = reg.All()
		}()
	}
	wg.Wait()
	_, ok := reg.Get("look")
	assert.True(t, ok)
}

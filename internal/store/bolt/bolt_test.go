// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package bolt_test

import (
	"path/filepath"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azimuth-mud/azimuth/internal/access"
	"github.com/azimuth-mud/azimuth/internal/store"
	"github.com/azimuth-mud/azimuth/internal/store/bolt"
	"github.com/azimuth-mud/azimuth/internal/world"
)

var _ store.Persistence = (*bolt.Store)(nil)

func openStore(t *testing.T) (*bolt.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "world.db")
	s, err := bolt.Open(path)
	require.NoError(t, err)
	return s, path
}

func sampleObject() *world.Object {
	id := ulid.Make()
	return &world.Object{
		ID:       id,
		Name:     "Shiny Gem",
		Aliases:  []string{"gem"},
		Owner:    id,
		Location: ulid.Make(),
		Properties: map[string]world.Value{
			"color": world.String("green"),
			"carat": world.Float(1.5),
		},
		Verbs: []*world.Verb{
			{Name: "polish", Action: access.ActionInteract, Behavior: "emote", Dobj: world.ArgThis},
		},
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s, path := openStore(t)
	obj := sampleObject()

	require.NoError(t, s.SaveObject(t.Context(), "W1", obj))
	require.NoError(t, s.Close())

	reopened, err := bolt.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadWorld(t.Context(), "W1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	got := loaded[0]
	assert.Equal(t, obj.ID, got.ID)
	assert.Equal(t, obj.Location, got.Location)
	assert.Equal(t, []string{"gem"}, got.Aliases)
	carat, _ := got.Property("carat")
	assert.Equal(t, "1.5", carat.String())
	require.Len(t, got.Verbs, 1)
	assert.Equal(t, world.ArgThis, got.Verbs[0].Dobj)
}

func TestStore_WorldsAreIsolated(t *testing.T) {
	s, _ := openStore(t)
	defer s.Close()

	require.NoError(t, s.SaveObject(t.Context(), "W1", sampleObject()))

	loaded, err := s.LoadWorld(t.Context(), "W2")
	require.NoError(t, err)
	assert.Empty(t, loaded)

	ids, err := s.FindByName(t.Context(), "W2", "gem")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_FindByNameFollowsRenames(t *testing.T) {
	s, _ := openStore(t)
	defer s.Close()
	obj := sampleObject()
	require.NoError(t, s.SaveObject(t.Context(), "W1", obj))

	ids, err := s.FindByName(t.Context(), "W1", "SHINY GEM")
	require.NoError(t, err)
	assert.Equal(t, []ulid.ULID{obj.ID}, ids)

	obj.Name = "Dull Rock"
	obj.Aliases = nil
	require.NoError(t, s.SaveObject(t.Context(), "W1", obj))

	ids, err = s.FindByName(t.Context(), "W1", "gem")
	require.NoError(t, err)
	assert.Empty(t, ids, "old names are removed from the index")
	ids, err = s.FindByName(t.Context(), "W1", "dull rock")
	require.NoError(t, err)
	assert.Equal(t, []ulid.ULID{obj.ID}, ids)

	ids, err = s.FindByName(t.Context(), "W1", "dull")
	require.NoError(t, err)
	assert.Empty(t, ids, "only whole names match")
}

func TestStore_Delete(t *testing.T) {
	s, _ := openStore(t)
	defer s.Close()
	obj := sampleObject()
	require.NoError(t, s.SaveObject(t.Context(), "W1", obj))

	require.NoError(t, s.DeleteObject(t.Context(), "W1", obj.ID))
	require.NoError(t, s.DeleteObject(t.Context(), "W1", obj.ID), "deleting twice is fine")
	require.NoError(t, s.DeleteObject(t.Context(), "NOPE", obj.ID))

	loaded, err := s.LoadWorld(t.Context(), "W1")
	require.NoError(t, err)
	assert.Empty(t, loaded)
	ids, err := s.FindByName(t.Context(), "W1", "gem")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_Backup(t *testing.T) {
	s, _ := openStore(t)
	defer s.Close()
	obj := sampleObject()
	require.NoError(t, s.SaveObject(t.Context(), "W1", obj))

	backup := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, s.Backup(backup))

	copyStore, err := bolt.Open(backup)
	require.NoError(t, err)
	defer copyStore.Close()
	loaded, err := copyStore.LoadWorld(t.Context(), "W1")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestStore_WithObjectStore(t *testing.T) {
	s, _ := openStore(t)
	objects := store.NewObjectStore("W1", s)
	g := world.New("W1", world.WithBackend(objects))
	_, err := g.Update(func(tx *world.Tx) error {
		root, err := tx.CreateRoot("$root")
		if err != nil {
			return err
		}
		_, err = tx.CreateObject(world.NewObject{Name: "Cave", Parents: []ulid.ULID{root}})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, objects.Close(t.Context()))

	reopened, err := bolt.Open(s.Path())
	require.NoError(t, err)
	defer reopened.Close()
	fresh := world.New("W1")
	require.NoError(t, store.NewObjectStore("W1", reopened).Load(t.Context(), fresh))
	assert.Equal(t, 2, fresh.Len())
}

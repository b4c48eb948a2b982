package roster

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertReplacesExistingIdentity(t *testing.T) {
	s := NewStore("Test Server", 8081, "ks_nordschleife")

	s.Upsert(Client{Name: "Alice", SteamID: "S1", Car: "Lambo"})
	s.Upsert(Client{Name: "Alice (2)", SteamID: "S1", Car: "Ferrari"})

	assert.Equal(t, 1, s.Len())
	c, ok := s.Get("S1")
	require.True(t, ok)
	assert.Equal(t, "Ferrari", c.Car)
	assert.Equal(t, "Alice (2)", c.Name)
}

func TestSameNameDifferentIdentityAreDistinct(t *testing.T) {
	s := NewStore("Test Server", 8081, "monza")

	s.Upsert(Client{Name: "Player", SteamID: "S1"})
	s.Upsert(Client{Name: "Player", SteamID: "S2"})

	assert.Equal(t, 2, s.Len())
}

func TestRemove(t *testing.T) {
	s := NewStore("Test Server", 8081, "monza")
	s.Upsert(Client{Name: "Alice", SteamID: "S1", Car: "Lambo"})

	c, err := s.Remove("S1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", c.Name)
	assert.Zero(t, s.Len())

	_, err = s.Remove("S1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotIsDetached(t *testing.T) {
	s := NewStore("Test Server", 8081, "spa")
	s.Upsert(Client{Name: "Alice", SteamID: "S1", Car: "Lambo"})

	snap := s.Snapshot()
	snap.Clients["S2"] = Client{Name: "Mallory", SteamID: "S2"}
	delete(snap.Clients, "S1")

	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("S1")
	assert.True(t, ok)

	assert.Equal(t, "Test Server", snap.ServerName)
	assert.Equal(t, 8081, snap.HTTPPort)
	assert.Equal(t, "spa", snap.TrackName)
}

func TestResetSkipsMissingIdentity(t *testing.T) {
	s := NewStore("Test Server", 8081, "spa")
	s.Upsert(Client{Name: "Stale", SteamID: "OLD"})

	s.Reset([]Client{
		{Name: "Alice", SteamID: "S1"},
		{Name: "NoID"},
		{Name: "Bob", SteamID: "S2"},
	})

	snap := s.Snapshot()
	assert.Len(t, snap.Clients, 2)
	assert.NotContains(t, snap.Clients, "OLD")
}

func TestConcurrentMutations(t *testing.T) {
	s := NewStore("Test Server", 8081, "spa")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("S%d", i)
			s.Upsert(Client{Name: id, SteamID: id})
			_ = s.Snapshot()
			if i%2 == 0 {
				_, _ = s.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, s.Len())
}

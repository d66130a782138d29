package idgen

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateIsSortedWithinOneMillisecond(t *testing.T) {
	g := NewULIDGenerator()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	prev := ""
	for i := 0; i < 1000; i++ {
		id, err := g.Generate()
		require.NoError(t, err)
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateConcurrentUnique(t *testing.T) {
	g := NewULIDGenerator()
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id, err := g.Generate()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 1600)
}

func TestValidate(t *testing.T) {
	g := NewULIDGenerator()
	id, err := g.Generate()
	require.NoError(t, err)

	ok, reason := g.Validate(id)
	require.True(t, ok, reason)

	ok, _ = g.Validate("short")
	require.False(t, ok)

	ok, _ = g.Validate("!!!!!!!!!!!!!!!!!!!!!!!!!!")
	require.False(t, ok)
}

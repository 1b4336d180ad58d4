package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateNotifiesObservers(t *testing.T) {
	s := New([]int{}, CloneSlice[int])

	var got [][]int
	unsubscribe := s.Subscribe(func(snap []int) { got = append(got, snap) })

	require.True(t, s.Update(func(cur []int) ([]int, bool) { return append(cur, 1), true }))
	require.True(t, s.Update(func(cur []int) ([]int, bool) { return append(cur, 2), true }))
	require.False(t, s.Update(func(cur []int) ([]int, bool) { return cur, false }))

	require.Equal(t, [][]int{{1}, {1, 2}}, got)

	unsubscribe()
	s.Update(func(cur []int) ([]int, bool) { return append(cur, 3), true })
	require.Len(t, got, 2)
	require.Equal(t, []int{1, 2, 3}, s.Snapshot())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New([]int{1, 2}, CloneSlice[int])

	snap := s.Snapshot()
	snap[0] = 99

	require.Equal(t, []int{1, 2}, s.Snapshot())
}

func TestUpdateReceivesACopy(t *testing.T) {
	s := New([]int{1}, CloneSlice[int])

	s.Update(func(cur []int) ([]int, bool) {
		cur[0] = 42
		return cur, false
	})

	require.Equal(t, []int{1}, s.Snapshot())
}

func TestClosedStoreIgnoresUpdates(t *testing.T) {
	s := New([]int{}, CloneSlice[int])
	notified := 0
	s.Subscribe(func([]int) { notified++ })

	s.Close()
	require.True(t, s.Closed())
	require.False(t, s.Update(func(cur []int) ([]int, bool) { return append(cur, 1), true }))
	require.Empty(t, s.Snapshot())
	require.Zero(t, notified)
}

func TestObserversSeeUpdatesInOrder(t *testing.T) {
	s := New(0, func(v int) int { return v })

	var mu sync.Mutex
	var seen []int
	s.Subscribe(func(v int) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(v int) (int, bool) { return v + 1, true })
		}()
	}
	wg.Wait()

	require.Len(t, seen, 50)
	for i, v := range seen {
		require.Equal(t, i+1, v)
	}
}

func TestStructurallyEqual(t *testing.T) {
	a := map[string]any{"id": "r1", "url": "https://git/r1", "meta": map[string]any{"b": 1, "a": 2}}
	b := map[string]any{"meta": map[string]any{"a": 2, "b": 1}, "url": "https://git/r1", "id": "r1"}
	require.True(t, StructurallyEqual(a, b))

	type repo struct {
		URL string `json:"url"`
		ID  string `json:"id"`
	}
	require.True(t, StructurallyEqual([]repo{{ID: "r1", URL: "u"}}, []map[string]string{{"id": "r1", "url": "u"}}))
	require.False(t, StructurallyEqual([]repo{{ID: "r1"}}, []repo{{ID: "r2"}}))
}

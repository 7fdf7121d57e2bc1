package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stateStart State = "greeting"

func TestGetOrCreateIsIdempotent(t *testing.T) {
	store := NewMemoryStore(stateStart)

	first := store.GetOrCreate("911")
	got, ok := store.Get("911")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Same(t, first, store.GetOrCreate("911"))
	assert.Equal(t, stateStart, first.State)
	assert.Equal(t, "911", first.ConversationID)
	assert.Equal(t, 1, store.Len())
}

func TestPutReplaces(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewMemoryStore(stateStart, WithClock(func() time.Time { return fixed }))

	s := store.GetOrCreate("a").Clone()
	s.State = "main_menu"
	s.SetField(FieldName, "Jane")
	store.Put("a", s)
	store.Put("a", s)

	got, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, State("main_menu"), got.State)
	assert.Equal(t, "Jane", got.Field(FieldName))
	assert.Equal(t, fixed, got.UpdatedAt)
	assert.Equal(t, 1, store.Len())
}

func TestDeleteRunsCancelHook(t *testing.T) {
	var cancelled []string
	store := NewMemoryStore(stateStart, WithOnDelete(func(id string) {
		cancelled = append(cancelled, id)
	}))

	store.GetOrCreate("x")
	store.Delete("x")

	_, ok := store.Get("x")
	assert.False(t, ok)
	assert.Equal(t, []string{"x"}, cancelled)

	fresh := store.GetOrCreate("x")
	assert.Equal(t, stateStart, fresh.State)
	assert.Empty(t, fresh.Fields)
}

func TestCloneIsDeep(t *testing.T) {
	s := &Session{Fields: map[string]string{FieldCity: "mumbai"}}
	cp := s.Clone()
	cp.SetField(FieldCity, "online")
	assert.Equal(t, "mumbai", s.Field(FieldCity))
	assert.Equal(t, "", (*Session)(nil).Field(FieldCity))
}

func TestConcurrentDistinctKeys(t *testing.T) {
	store := NewMemoryStore(stateStart)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			s := store.GetOrCreate(id)
			store.Put(id, s.Clone())
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, store.Len())
}

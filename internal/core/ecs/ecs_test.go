package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityPoolGenerations(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	require.False(t, a.IsZero(), "first entity must not be the zero id")
	assert.True(t, p.Alive(a))
	assert.False(t, p.Alive(0))

	p.Destroy(a)
	assert.False(t, p.Alive(a))
	assert.Equal(t, 0, p.Live())

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index(), "slot reused")
	assert.Equal(t, a.Generation()+1, b.Generation())
	assert.False(t, p.Alive(a), "stale id stays dead")

	p.Destroy(a)
	assert.True(t, p.Alive(b), "destroying a stale id leaves the new owner alone")
}

func TestStoreIterationIsOrdered(t *testing.T) {
	w := NewWorld()
	s := NewPtrComponentStore[int]()
	var ids []EntityID
	for i := 0; i < 20; i++ {
		id := w.CreateEntity()
		v := i
		s.Set(id, &v)
		ids = append(ids, id)
	}
	var seen []EntityID
	s.Each(func(id EntityID, _ *int) { seen = append(seen, id) })
	assert.Equal(t, ids, seen)
}

func TestEach2(t *testing.T) {
	w := NewWorld()
	names := NewPtrComponentStore[string]()
	ages := NewPtrComponentStore[int]()
	a, b, c := w.CreateEntity(), w.CreateEntity(), w.CreateEntity()
	n1, n2 := "a", "b"
	age1, age3 := 1, 3
	names.Set(a, &n1)
	names.Set(b, &n2)
	ages.Set(a, &age1)
	ages.Set(c, &age3)

	var got []EntityID
	Each2(names, ages, func(id EntityID, _ *string, _ *int) { got = append(got, id) })
	assert.Equal(t, []EntityID{a}, got)
}

func TestWorldDestroyQueue(t *testing.T) {
	w := NewWorld()
	s := NewPtrComponentStore[int]()
	w.Registry().Register(s)

	a, b := w.CreateEntity(), w.CreateEntity()
	one, two := 1, 2
	s.Set(a, &one)
	s.Set(b, &two)

	// destroying a cascades to b through the hook
	var hooked []EntityID
	w.OnDestroy(func(id EntityID) {
		hooked = append(hooked, id)
		if id == a {
			w.MarkForDestruction(b)
		}
	})

	w.MarkForDestruction(a)
	w.MarkForDestruction(a)
	assert.True(t, w.Pending(a))

	assert.Equal(t, 2, w.FlushDestroyQueue())
	assert.Equal(t, []EntityID{a, b}, hooked)
	assert.False(t, w.Alive(a))
	assert.False(t, w.Alive(b))
	assert.Equal(t, 0, s.Len())
	assert.False(t, w.Pending(b))
	assert.Equal(t, 0, w.FlushDestroyQueue())
}

package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"tempmail/bot/internal/domain"
)

func TestUserRegistry(t *testing.T) {
	r := NewUserRegistry()

	assert.True(t, r.Register(3))
	assert.True(t, r.Register(1))
	assert.False(t, r.Register(3))

	assert.True(t, r.Contains(1))
	assert.False(t, r.Contains(2))
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []domain.OwnerID{1, 3}, r.List())
}

func TestUserRegistry_ConcurrentRegister(t *testing.T) {
	r := NewUserRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for owner := 0; owner < 100; owner++ {
				r.Register(domain.OwnerID(owner))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, r.Count())
}

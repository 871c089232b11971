package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStore_DefaultsAndUpdate(t *testing.T) {
	s := NewStore(Options{Defaults: Selection{ProfileKey: "product_designer", PlatformKey: "v0", Mode: "prompt"}})

	sel := s.Selection(1, "ann")
	assert.Equal(t, Selection{ProfileKey: "product_designer", PlatformKey: "v0", Mode: "prompt"}, sel)

	sel = s.Update(1, "ann", func(sel *Selection) { sel.PlatformKey = "lovable" })
	assert.Equal(t, "lovable", sel.PlatformKey)
	assert.Equal(t, "product_designer", sel.ProfileKey)

	assert.Equal(t, "v0", s.Selection(2, "").PlatformKey, "chats are independent")

	s.Clear(1)
	assert.Equal(t, "v0", s.Selection(1, "").PlatformKey)
}

func TestStore_RecordAnalysis(t *testing.T) {
	s := NewStore(Options{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordAnalysis(7)
		}()
	}
	wg.Wait()
	assert.Equal(t, 21, s.RecordAnalysis(7))
}

func TestStore_Prune(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(Options{IdleTTL: time.Hour, Now: func() time.Time { return now }})

	s.Selection(1, "")
	now = now.Add(30 * time.Minute)
	s.Selection(2, "")
	now = now.Add(45 * time.Minute)

	assert.Equal(t, 1, s.Prune())
	assert.Equal(t, 1, s.Len())
}

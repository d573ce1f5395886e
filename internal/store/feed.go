package store

import (
	"sync"

	"usaha/internal/core"
)

// Broadcaster fans full-collection snapshots out to per-owner subscribers.
// Slow subscribers only ever see the newest snapshot.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan []core.Business
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[int]chan []core.Business)}
}

// Subscribe returns a channel of snapshots for owner and a cancel func that
// closes it.
func (b *Broadcaster) Subscribe(owner string) (<-chan []core.Business, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[string]map[int]chan []core.Business)
	}
	id := b.next
	b.next++
	ch := make(chan []core.Business, 1)
	if b.subs[owner] == nil {
		b.subs[owner] = make(map[int]chan []core.Business)
	}
	b.subs[owner][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[owner], id)
			if len(b.subs[owner]) == 0 {
				delete(b.subs, owner)
			}
			close(ch)
		})
	}
}

// Publish delivers a deep copy of snapshot to every subscriber of owner,
// replacing any snapshot they have not consumed yet.
func (b *Broadcaster) Publish(owner string, snapshot []core.Business) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[owner] {
		select {
		case <-ch:
		default:
		}
		ch <- core.CloneAll(snapshot)
	}
}

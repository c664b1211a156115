package socket

import (
	"sort"
	"sync"

	"github.com/iudanet/canvassync/pkg/api"
)

// DefaultBufferSize емкость буфера исходящих событий
const DefaultBufferSize = 100

type buffered struct {
	event api.Event
	seq   uint64
}

// Buffer ограниченный буфер исходящих событий: сначала высокий приоритет,
// внутри приоритета FIFO. При переполнении вытесняется самое новое событие
// с наименьшим приоритетом.
type Buffer struct {
	items    []buffered
	seq      uint64
	capacity int
	dropped  int
	mu       sync.Mutex
}

// NewBuffer создает буфер
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{capacity: capacity}
}

// Push добавляет событие. Возвращает false, если событие отброшено.
func (b *Buffer) Push(ev api.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) >= b.capacity {
		last := b.items[len(b.items)-1]
		if last.event.Priority >= ev.Priority {
			b.dropped++
			return false
		}
		b.items = b.items[:len(b.items)-1]
		b.dropped++
	}

	b.seq++
	item := buffered{event: ev, seq: b.seq}
	// позиция после всех событий с приоритетом >= нового
	i := sort.Search(len(b.items), func(i int) bool {
		return b.items[i].event.Priority < ev.Priority
	})
	b.items = append(b.items, buffered{})
	copy(b.items[i+1:], b.items[i:])
	b.items[i] = item
	return true
}

// Drain извлекает все события в порядке отправки
func (b *Buffer) Drain() []api.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]api.Event, len(b.items))
	for i, it := range b.items {
		out[i] = it.event
	}
	b.items = nil
	return out
}

// Len число событий в буфере
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Dropped число отброшенных событий
func (b *Buffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

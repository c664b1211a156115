// Package pubsub типизированная шина публикации/подписки с явными
// дескрипторами отписки.
package pubsub

import (
	"sort"
	"sync"
)

// Handler обработчик сообщений темы
type Handler[T any] func(topic string, msg T)

// Unsubscribe снимает подписку. Повторный вызов безопасен.
type Unsubscribe func()

// Bus шина сообщений типа T. Обработчики вызываются синхронно
// в горутине Publish вне блокировки шины.
type Bus[T any] struct {
	topics map[string]map[uint64]Handler[T]
	nextID uint64
	mu     sync.RWMutex
}

// New создает пустую шину
func New[T any]() *Bus[T] {
	return &Bus[T]{topics: make(map[string]map[uint64]Handler[T])}
}

// Subscribe регистрирует обработчик темы. "*" подписывает на все темы.
func (b *Bus[T]) Subscribe(topic string, h Handler[T]) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[uint64]Handler[T])
		b.topics[topic] = subs
	}
	subs[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.topics[topic], id)
			if len(b.topics[topic]) == 0 {
				delete(b.topics, topic)
			}
		})
	}
}

// Publish доставляет сообщение подписчикам темы и подписчикам "*"
// в порядке подписки. Возвращает число вызванных обработчиков.
func (b *Bus[T]) Publish(topic string, msg T) int {
	handlers := b.snapshot(topic)
	for _, h := range handlers {
		h(topic, msg)
	}
	return len(handlers)
}

// Count число подписчиков темы (без учета "*")
func (b *Bus[T]) Count(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Wildcard тема, получающая все сообщения
const Wildcard = "*"

func (b *Bus[T]) snapshot(topic string) []Handler[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	type entry struct {
		h  Handler[T]
		id uint64
	}
	var entries []entry
	for id, h := range b.topics[topic] {
		entries = append(entries, entry{id: id, h: h})
	}
	if topic != Wildcard {
		for id, h := range b.topics[Wildcard] {
			entries = append(entries, entry{id: id, h: h})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	handlers := make([]Handler[T], len(entries))
	for i, e := range entries {
		handlers[i] = e.h
	}
	return handlers
}

package dashboard

import "sync"

// Consumer receives published values.
type Consumer[T any] func(T)

// Feed fans a value out to every subscriber, in subscription order, on
// the publishing goroutine.
type Feed[T any] struct {
	mu        sync.RWMutex
	consumers []Consumer[T]
}

// Subscribe registers consumer for every later Publish.
func (f *Feed[T]) Subscribe(consumer Consumer[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumers = append(f.consumers, consumer)
}

// Publish calls each consumer with value.
func (f *Feed[T]) Publish(value T) {
	f.mu.RLock()
	consumers := f.consumers
	f.mu.RUnlock()

	for _, consumer := range consumers {
		consumer(value)
	}
}

// Len reports the number of subscribers.
func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.consumers)
}

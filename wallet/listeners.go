package wallet

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/genetrust/genetrust-gateway/apperr"
)

type listenerEntry[T any] struct {
	id uint64
	cb func(T)
}

// listenerSet fans a value out to callbacks in registration order. A panicking
// callback is logged and skipped.
type listenerSet[T any] struct {
	lk      sync.Mutex
	nextID  uint64
	entries []listenerEntry[T]
	log     *zap.SugaredLogger
}

func newListenerSet[T any](log *zap.SugaredLogger) *listenerSet[T] {
	return &listenerSet[T]{log: log}
}

func (l *listenerSet[T]) add(cb func(T)) (func(), error) {
	if cb == nil {
		return nil, apperr.InvalidInput("listener must be a function")
	}
	l.lk.Lock()
	defer l.lk.Unlock()
	id := l.nextID
	l.nextID++
	l.entries = append(l.entries, listenerEntry[T]{id: id, cb: cb})

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}, nil
}

func (l *listenerSet[T]) remove(id uint64) {
	l.lk.Lock()
	defer l.lk.Unlock()
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *listenerSet[T]) len() int {
	l.lk.Lock()
	defer l.lk.Unlock()
	return len(l.entries)
}

func (l *listenerSet[T]) clear() {
	l.lk.Lock()
	defer l.lk.Unlock()
	l.entries = nil
}

func (l *listenerSet[T]) emit(v T) {
	l.lk.Lock()
	snapshot := append([]listenerEntry[T](nil), l.entries...)
	l.lk.Unlock()

	for _, e := range snapshot {
		l.call(e, v)
	}
}

func (l *listenerSet[T]) call(e listenerEntry[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("listener %d panic: %v", e.id, r)
		}
	}()
	e.cb(v)
}

// watch returns a channel holding the newest value only, starting with current() when
// given. It is closed once ctx is done.
func (l *listenerSet[T]) watch(ctx context.Context, current func() T) <-chan T {
	ch := make(chan T, 1)
	var mu sync.Mutex
	closed := false
	push := func(v T) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- v:
		default:
			// replace the stale value
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
	unsubscribe, _ := l.add(push)
	if current != nil {
		push(current())
	}
	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}

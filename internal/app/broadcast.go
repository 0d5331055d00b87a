package app

import "sync"

// broadcaster fans values out to every live subscriber of one per-session
// channel. There is no replay buffer: a subscriber only sees values published
// after it subscribed.
type broadcaster[T any] struct {
	mu   sync.Mutex
	subs map[chan T]struct{}
}

func newBroadcaster[T any]() *broadcaster[T] {
	return &broadcaster[T]{subs: make(map[chan T]struct{})}
}

// subscribe registers a receiver. The returned cancel is idempotent; callers
// must invoke it when done to release the channel.
func (b *broadcaster[T]) subscribe() (<-chan T, func()) {
	ch := make(chan T, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// publish delivers v to every current subscriber and never blocks the
// publisher: a slow subscriber with a full buffer loses its oldest value.
func (b *broadcaster[T]) publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// closeAll tears down every subscriber channel. Used on session cleanup;
// pending cancel calls remain safe because membership is checked under mu.
func (b *broadcaster[T]) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

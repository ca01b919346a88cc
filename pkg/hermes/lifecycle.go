package hermes

import "sync"

// Lifecycle is the closed state shared by a connection-owning client and its
// read loop. The zero value is not usable; use NewLifecycle.
type Lifecycle struct {
	once sync.Once
	done chan struct{}
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{done: make(chan struct{})}
}

// Shutdown marks the lifecycle closed. It reports true only for the call that
// actually closed it.
func (l *Lifecycle) Shutdown() bool {
	first := false

	l.once.Do(func() {
		first = true
		close(l.done)
	})

	return first
}

func (l *Lifecycle) Done() <-chan struct{} {
	return l.done
}

func (l *Lifecycle) IsClosed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

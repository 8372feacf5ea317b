package progress

import "sync"

// Source publishes progress and message events.
type Source interface {
	Subscribe(onProgress func(float64), onMessage func(string)) *Subscription
}

// Subscription is one attached listener pair.
type Subscription struct {
	pipeline *Pipeline
	id       uint64
	once     sync.Once
}

// Subscribe attaches a listener pair. Either callback may be nil.
// Listeners run on the goroutine that completed the step and must not block.
// Progress events are strictly increasing and the last one is always 1.0. Finish emits 1.0 only
// when the steps had not already reached it, so listeners never receive a duplicate 1.0.
func (p *Pipeline) Subscribe(onProgress func(float64), onMessage func(string)) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = listener{onProgress: onProgress, onMessage: onMessage}
	return &Subscription{pipeline: p, id: id}
}

// Unsubscribe detaches the listener pair. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.pipeline == nil {
		return
	}
	s.once.Do(func() {
		s.pipeline.mu.Lock()
		delete(s.pipeline.listeners, s.id)
		s.pipeline.mu.Unlock()
	})
}

// Binding keeps one listener pair attached to at most one Source.
// Binding again detaches the previous subscription first, so events are never delivered twice.
type Binding struct {
	mu         sync.Mutex
	sub        *Subscription
	onProgress func(float64)
	onMessage  func(string)
}

// NewBinding constructs an unbound Binding for the listener pair.
func NewBinding(onProgress func(float64), onMessage func(string)) *Binding {
	return &Binding{onProgress: onProgress, onMessage: onMessage}
}

// Bind detaches from the current source, if any, and attaches to src.
func (b *Binding) Bind(src Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		b.sub.Unsubscribe()
		b.sub = nil
	}
	if src == nil {
		return
	}
	b.sub = src.Subscribe(b.onProgress, b.onMessage)
}

// Unbind detaches from the current source.
func (b *Binding) Unbind() {
	b.Bind(nil)
}

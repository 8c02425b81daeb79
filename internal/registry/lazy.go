package registry

import "sync"

// Lazy loads a registry once, either in the background after Start or on
// the first call to Get.
type Lazy struct {
	load  func() (*Registry, error)
	once  sync.Once
	ready chan struct{}

	reg *Registry
	err error
}

func NewLazy(load func() (*Registry, error)) *Lazy {
	return &Lazy{load: load, ready: make(chan struct{})}
}

func (l *Lazy) init() {
	l.once.Do(func() {
		defer close(l.ready)
		l.reg, l.err = l.load()
	})
}

// Start begins loading in a new goroutine. It does nothing if loading has
// already started.
func (l *Lazy) Start() {
	go l.init()
}

// Ready is closed once loading has finished, successfully or not.
func (l *Lazy) Ready() <-chan struct{} {
	return l.ready
}

// Get returns the registry, loading it if needed. Concurrent callers wait
// for the same load.
func (l *Lazy) Get() (*Registry, error) {
	select {
	case <-l.ready:
	default:
		l.init()
	}
	return l.reg, l.err
}

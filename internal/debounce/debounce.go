package debounce

import (
	"sync"
	"time"
)

// Debouncer delivers the last value passed to Set once no newer value has
// arrived for the interval.
type Debouncer[T any] struct {
	mx       sync.Mutex
	interval time.Duration
	fire     func(T)
	timer    *time.Timer
	gen      uint64
	firing   int
	stopped  bool
}

func New[T any](interval time.Duration, fire func(T)) *Debouncer[T] {
	return &Debouncer[T]{interval: interval, fire: fire}
}

// Set restarts the quiet period with v as the pending value.
func (d *Debouncer[T]) Set(v T) {
	d.mx.Lock()
	defer d.mx.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.interval, func() {
		d.mx.Lock()
		if d.stopped || gen != d.gen {
			d.mx.Unlock()
			return
		}
		d.timer = nil
		d.firing++
		d.mx.Unlock()

		d.fire(v)

		d.mx.Lock()
		d.firing--
		d.mx.Unlock()
	})
}

// Cancel drops the pending value, if any.
func (d *Debouncer[T]) Cancel() {
	d.mx.Lock()
	defer d.mx.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Stop cancels the pending value and ignores every later Set.
func (d *Debouncer[T]) Stop() {
	d.Cancel()

	d.mx.Lock()
	d.stopped = true
	d.mx.Unlock()
}

// Pending reports whether a value is waiting or being delivered.
func (d *Debouncer[T]) Pending() bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.timer != nil || d.firing > 0
}

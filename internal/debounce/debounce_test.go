package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mx     sync.Mutex
	values []string
	fired  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) fire(v string) {
	r.mx.Lock()
	r.values = append(r.values, v)
	r.mx.Unlock()
	r.fired <- struct{}{}
}

func (r *recorder) got() []string {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]string(nil), r.values...)
}

func TestDebouncer_FiresOnceWithLastValue(t *testing.T) {
	rec := newRecorder()
	d := New(30*time.Millisecond, rec.fire)
	defer d.Stop()

	for _, v := range []string{"a", "ab", "abc"} {
		d.Set(v)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-rec.fired:
	case <-time.After(time.Second):
		t.Fatal("debouncer did not fire")
	}

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"abc"}, rec.got())
	assert.False(t, d.Pending())
}

func TestDebouncer_Cancel(t *testing.T) {
	rec := newRecorder()
	d := New(20*time.Millisecond, rec.fire)
	defer d.Stop()

	d.Set("x")
	assert.True(t, d.Pending())
	d.Cancel()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.got())

	d.Set("y")
	select {
	case <-rec.fired:
	case <-time.After(time.Second):
		t.Fatal("debouncer did not fire after cancel")
	}
	assert.Equal(t, []string{"y"}, rec.got())
}

func TestDebouncer_NeverFiresAfterStop(t *testing.T) {
	rec := newRecorder()
	d := New(20*time.Millisecond, rec.fire)

	d.Set("x")
	d.Stop()
	d.Set("y")

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.got())
	assert.False(t, d.Pending())
}

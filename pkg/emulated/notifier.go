package emulated

import (
	"sync"

	"github.com/go-fprint/fphal/pkg/fphal"
)

// notifier owns event delivery: one goroutine, strict FIFO, callback
// never invoked concurrently. Events queued while no callback is
// registered are held until one is.
type notifier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	fn     fphal.NotifyFunc
	queue  []fphal.Event
	closed bool
	done   chan struct{}
}

func newNotifier() *notifier {
	n := &notifier{
		done: make(chan struct{}),
	}
	n.cond = sync.NewCond(&n.mu)
	go n.run()
	return n
}

func (n *notifier) run() {
	defer close(n.done)

	for {
		n.mu.Lock()
		for !n.closed && (len(n.queue) == 0 || n.fn == nil) {
			n.cond.Wait()
		}
		if n.closed && len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		ev := n.queue[0]
		n.queue = n.queue[1:]
		fn := n.fn
		n.mu.Unlock()

		if fn != nil {
			fn(ev)
		}
	}
}

func (n *notifier) setFunc(fn fphal.NotifyFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.fn = fn
	n.cond.Broadcast()
}

func (n *notifier) push(ev fphal.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.queue = append(n.queue, ev)
	n.cond.Broadcast()
}

// close stops delivery after the pending queue drains and waits for the
// delivery goroutine to exit.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.cond.Broadcast()
	n.mu.Unlock()

	<-n.done
}

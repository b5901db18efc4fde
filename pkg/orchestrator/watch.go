package orchestrator

// Number of snapshots that a watcher can fall behind by, before we start dropping
const watchBufferSize = 8

// Watch returns a channel that receives a snapshot after every state change,
// starting with the current state. Call the returned function to stop watching.
//
// A watcher that doesn't keep up loses its oldest pending snapshots. The most
// recent snapshot is always delivered.
func (o *Orchestrator) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, watchBufferSize)
	o.lock.Lock()
	o.watchers[ch] = struct{}{}
	ch <- o.copySnapshot()
	o.lock.Unlock()

	unwatch := func() {
		o.lock.Lock()
		defer o.lock.Unlock()
		if _, ok := o.watchers[ch]; ok {
			delete(o.watchers, ch)
			close(ch)
		}
	}
	return ch, unwatch
}

// Send the current snapshot to all watchers.
// Must be called with o.lock held, so that watchers see changes in order.
func (o *Orchestrator) publish() {
	for ch := range o.watchers {
		s := o.copySnapshot()
		select {
		case ch <- s:
		default:
			// Drop the oldest, to make room for the newest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

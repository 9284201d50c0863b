package dashboard

// Subscribe returns a channel that receives every published snapshot. The
// channel holds one snapshot; a slow reader only ever misses intermediate
// ones and always finds the newest. cancel closes the channel.
func (a *Aggregator) Subscribe() (<-chan *Snapshot, func()) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan *Snapshot, 1)
	a.subs[id] = ch

	if snap := a.current.Load(); snap != nil {
		ch <- snap
	}

	cancel := func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		if c, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(c)
		}
	}

	return ch, cancel
}

// Subscribers returns the number of open subscriptions.
func (a *Aggregator) Subscribers() int {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	return len(a.subs)
}

func (a *Aggregator) notify(snap *Snapshot) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	for _, ch := range a.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Drop the unread snapshot in favour of the newer one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

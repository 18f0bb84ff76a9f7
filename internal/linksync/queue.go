package linksync

// ResyncQueue is a FIFO of link ids waiting for their content to be
// refreshed. Pushing an id that is already queued keeps its position.
type ResyncQueue struct {
	ids    []LinkID
	queued map[LinkID]struct{}
}

// Push enqueues ids that are not already waiting.
func (q *ResyncQueue) Push(ids ...LinkID) {
	if q.queued == nil {
		q.queued = map[LinkID]struct{}{}
	}
	for _, id := range ids {
		if _, ok := q.queued[id]; ok {
			continue
		}
		q.queued[id] = struct{}{}
		q.ids = append(q.ids, id)
	}
}

// Len returns the number of waiting ids.
func (q *ResyncQueue) Len() int { return len(q.ids) }

// Drain returns the waiting ids in order and empties the queue.
func (q *ResyncQueue) Drain() []LinkID {
	out := q.ids
	q.ids = nil
	clear(q.queued)
	return out
}

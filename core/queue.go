package core

// queue is a bounded, ordered list of group IDs. Storage is allocated once.
type queue struct {
	items []GroupID
	n     int
}

func newQueue(depth int) queue {
	return queue{items: make([]GroupID, depth)}
}

func (q *queue) len() int    { return q.n }
func (q *queue) full() bool  { return q.n == len(q.items) }
func (q *queue) empty() bool { return q.n == 0 }

func (q *queue) front() GroupID {
	if q.n == 0 {
		return noGroup
	}
	return q.items[0]
}

// insertAt shifts entries at pos and later one place right.
func (q *queue) insertAt(pos int, g GroupID) bool {
	if q.full() || pos < 0 || pos > q.n {
		return false
	}
	copy(q.items[pos+1:q.n+1], q.items[pos:q.n])
	q.items[pos] = g
	q.n++
	return true
}

func (q *queue) push(g GroupID) bool {
	return q.insertAt(q.n, g)
}

// remove deletes g wherever it sits and compacts the rest left.
func (q *queue) remove(g GroupID) bool {
	for i := 0; i < q.n; i++ {
		if q.items[i] != g {
			continue
		}
		copy(q.items[i:q.n-1], q.items[i+1:q.n])
		q.n--
		q.items[q.n] = noGroup
		return true
	}
	return false
}

func (q *queue) contains(g GroupID) bool {
	for _, id := range q.items[:q.n] {
		if id == g {
			return true
		}
	}
	return false
}

func (q *queue) snapshot(dst []GroupID) int {
	return copy(dst, q.items[:q.n])
}

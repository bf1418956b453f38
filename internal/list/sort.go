package list

// Sort orders the list by cmp with a bottom-up merge sort.
// Stable: equal values keep their order. Only links are touched, so node
// handles stay valid, but Head and Tail usually change.
func (l *DList[T]) Sort(cmp func(a, b T) int) {
	if l.head == nil {
		return
	}

	merged := l.head
	for insize := 1; ; insize *= 2 {
		p := merged
		merged = nil
		var tail *Node[T]
		nmerges := 0

		for p != nil {
			nmerges++

			// step insize places along from p
			q := p
			psize := 0
			for i := 0; i < insize; i++ {
				psize++
				q = q.next
				if q == nil {
					break
				}
			}
			qsize := insize

			for psize > 0 || (qsize > 0 && q != nil) {
				var e *Node[T]
				switch {
				case psize == 0:
					e, q = q, q.next
					qsize--
				case qsize == 0 || q == nil:
					e, p = p, p.next
					psize--
				case cmp(p.Value, q.Value) <= 0:
					e, p = p, p.next
					psize--
				default:
					e, q = q, q.next
					qsize--
				}

				if tail != nil {
					tail.next = e
				} else {
					merged = e
				}
				e.prev = tail
				tail = e
			}

			p = q
		}
		tail.next = nil

		if nmerges <= 1 {
			break
		}
	}

	l.head = merged
	l.head.prev = nil
	cur := l.head
	for cur.next != nil {
		cur = cur.next
	}
	l.tail = cur
}

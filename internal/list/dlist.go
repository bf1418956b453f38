package list

// DList is the doubly-linked container.
//
// IMPORTANT: does not provide thread safety
type DList[T any] struct {
	head    *Node[T]
	tail    *Node[T]
	release func(T)
}

func NewDList[T any]() *DList[T] {
	return &DList[T]{}
}

// SetRelease sets the hook Purge calls for every dropped value
func (l *DList[T]) SetRelease(fn func(T)) {
	l.release = fn
}

func (l *DList[T]) Head() *Node[T] {
	return l.head
}

func (l *DList[T]) Tail() *Node[T] {
	return l.tail
}

// IsEmpty returns true if list is empty
func (l *DList[T]) IsEmpty() bool {
	return l.head == nil
}

func (l *DList[T]) AddToHead(node *Node[T]) error {
	if node == nil {
		return ErrNilNode
	}
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	} else {
		l.tail = node
	}
	l.head = node
	return nil
}

func (l *DList[T]) AddToTail(node *Node[T]) error {
	if node == nil {
		return ErrNilNode
	}
	node.next = nil
	node.prev = l.tail
	if l.tail != nil {
		l.tail.next = node
	} else {
		l.head = node
	}
	l.tail = node
	return nil
}

// AddAfterNode links node after anchor. A nil anchor means the head.
func (l *DList[T]) AddAfterNode(anchor, node *Node[T]) error {
	if node == nil {
		return ErrNilNode
	}
	if anchor == nil {
		return l.AddToHead(node)
	}
	if anchor == l.tail {
		return l.AddToTail(node)
	}
	// a member that is not the tail always has a successor
	if anchor.next == nil {
		return ErrNodeNotFound
	}
	node.prev = anchor
	node.next = anchor.next
	anchor.next.prev = node
	anchor.next = node
	return nil
}

// AddBeforeNode links node before anchor. A nil anchor means the tail.
func (l *DList[T]) AddBeforeNode(anchor, node *Node[T]) error {
	if node == nil {
		return ErrNilNode
	}
	if anchor == nil {
		return l.AddToTail(node)
	}
	if anchor == l.head {
		return l.AddToHead(node)
	}
	if anchor.prev == nil {
		return ErrNodeNotFound
	}
	node.next = anchor
	node.prev = anchor.prev
	anchor.prev.next = node
	anchor.prev = node
	return nil
}

// Remove unlinks node without checking that it belongs to this list.
// Use RemoveSafe when the node origin is not certain.
func (l *DList[T]) Remove(node *Node[T]) error {
	if node == nil {
		return ErrNilNode
	}
	if node.prev == nil {
		if l.head != node {
			return ErrNodeNotFound
		}
		l.head = node.next
	} else {
		node.prev.next = node.next
	}
	if node.next == nil {
		l.tail = node.prev
	} else {
		node.next.prev = node.prev
	}
	node.unlink()
	return nil
}

// RemoveSafe checks membership before unlinking
func (l *DList[T]) RemoveSafe(node *Node[T]) error {
	if node == nil {
		return ErrNilNode
	}
	for cur := l.head; cur != nil; cur = cur.next {
		if cur == node {
			return l.Remove(node)
		}
	}
	return ErrNodeNotFound
}

// Exists reports whether any value in the list equals item
func (l *DList[T]) Exists(item T, equal func(a, b T) bool) bool {
	for cur := l.head; cur != nil; cur = cur.next {
		if equal(cur.Value, item) {
			return true
		}
	}
	return false
}

// Purge drops every node and resets the list
func (l *DList[T]) Purge() {
	for cur := l.head; cur != nil; {
		next := cur.next
		if l.release != nil {
			l.release(cur.Value)
		}
		cur.unlink()
		cur = next
	}
	l.head = nil
	l.tail = nil
}

// Count walks the list
func (l *DList[T]) Count() int {
	count := 0
	for cur := l.head; cur != nil; cur = cur.next {
		count++
	}
	return count
}

// Index returns the i-th node or nil
func (l *DList[T]) Index(i int) *Node[T] {
	if i < 0 {
		return nil
	}
	cur := l.head
	for ; cur != nil && i > 0; i-- {
		cur = cur.next
	}
	return cur
}

// Values returns a snapshot of the values in list order
func (l *DList[T]) Values() []T {
	values := make([]T, 0)
	for cur := l.head; cur != nil; cur = cur.next {
		values = append(values, cur.Value)
	}
	return values
}

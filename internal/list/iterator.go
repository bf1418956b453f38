package list

// Iterator holding the iterator's state
type Iterator[T any] struct {
	list *DList[T]
	node *Node[T]
	pos  position
}

type position byte

const (
	begin, onmyway, end position = 0, 1, 2
)

// Iterator returns an iterator positioned one-before-first
//
// IMPORTANT: iterator does not provide thread safety
func (l *DList[T]) Iterator() Iterator[T] {
	return Iterator[T]{list: l, node: nil, pos: begin}
}

// IteratorAt returns an iterator at node
func (l *DList[T]) IteratorAt(node *Node[T]) Iterator[T] {
	if node == nil {
		return Iterator[T]{list: l, node: nil, pos: begin}
	}
	return Iterator[T]{list: l, node: node, pos: onmyway}
}

// Next moves the iterator to the next element
func (it *Iterator[T]) Next() bool {
	switch it.pos {
	case end:
		it.node = nil
		return false
	case begin:
		it.node = it.list.head
	default:
		it.node = it.node.next
	}

	if it.node == nil {
		it.pos = end
		return false
	}
	it.pos = onmyway
	return true
}

// Prev moves the iterator to the previous element
func (it *Iterator[T]) Prev() bool {
	switch it.pos {
	case begin:
		it.node = nil
		return false
	case end:
		it.node = it.list.tail
	default:
		it.node = it.node.prev
	}

	if it.node == nil {
		it.pos = begin
		return false
	}
	it.pos = onmyway
	return true
}

// Node returns the current node, nil outside the list
func (it *Iterator[T]) Node() *Node[T] {
	return it.node
}

// Value returns the current element's value
func (it *Iterator[T]) Value() T {
	return it.node.Value
}

// Begin resets the iterator to one-before-first
func (it *Iterator[T]) Begin() {
	it.node = nil
	it.pos = begin
}

// End moves the iterator to one-past-the-end
func (it *Iterator[T]) End() {
	it.node = nil
	it.pos = end
}

// First moves the iterator to the first element
func (it *Iterator[T]) First() bool {
	it.Begin()
	return it.Next()
}

// Last moves the iterator to the last element
func (it *Iterator[T]) Last() bool {
	it.End()
	return it.Prev()
}

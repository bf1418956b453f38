// Package list holds the containers every persisted record keeps its children in.
//
// Nodes are handles: the caller creates them with NewNode and hands them over,
// the container only links and unlinks them. A node belongs to at most one
// container at a time.
package list

import (
	"errors"
)

var (
	ErrNilNode      = errors.New("nil node")
	ErrNodeNotFound = errors.New("node not found")
)

// Node is a list element
type Node[T any] struct {
	Value T

	next *Node[T]
	prev *Node[T]
}

// NewNode wraps value into a node ready to be added to a container
func NewNode[T any](value T) *Node[T] {
	return &Node[T]{Value: value}
}

// Next returns the following node or nil
func (n *Node[T]) Next() *Node[T] {
	return n.next
}

// Prev returns the preceding node or nil. Always nil for List members.
func (n *Node[T]) Prev() *Node[T] {
	return n.prev
}

func (n *Node[T]) unlink() {
	n.next = nil
	n.prev = nil
}

// List is the single-link ordered container.
//
// IMPORTANT: does not provide thread safety
type List[T any] struct {
	head    *Node[T]
	tail    *Node[T]
	release func(T)
}

func NewList[T any]() *List[T] {
	return &List[T]{}
}

// SetRelease sets the hook Purge calls for every dropped value
func (l *List[T]) SetRelease(fn func(T)) {
	l.release = fn
}

func (l *List[T]) Head() *Node[T] {
	return l.head
}

func (l *List[T]) Tail() *Node[T] {
	return l.tail
}

// IsEmpty returns true if list is empty
func (l *List[T]) IsEmpty() bool {
	return l.head == nil
}

// AddToHead links node in front of the list
func (l *List[T]) AddToHead(node *Node[T]) error {
	if node == nil {
		return ErrNilNode
	}
	node.prev = nil
	node.next = l.head
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	return nil
}

// AddToTail links node at the end of the list
func (l *List[T]) AddToTail(node *Node[T]) error {
	if node == nil {
		return ErrNilNode
	}
	node.prev = nil
	node.next = nil
	if l.tail == nil {
		l.head = node
	} else {
		l.tail.next = node
	}
	l.tail = node
	return nil
}

// AddAfterNode links node after anchor. A nil anchor means the head.
func (l *List[T]) AddAfterNode(anchor, node *Node[T]) error {
	if node == nil {
		return ErrNilNode
	}
	if anchor == nil {
		return l.AddToHead(node)
	}
	if anchor == l.tail {
		return l.AddToTail(node)
	}
	if anchor.next == nil {
		return ErrNodeNotFound
	}
	node.prev = nil
	node.next = anchor.next
	anchor.next = node
	return nil
}

// Remove unlinks node and gives it back to the caller
func (l *List[T]) Remove(node *Node[T]) error {
	if node == nil {
		return ErrNilNode
	}

	var prev *Node[T]
	for cur := l.head; cur != nil; cur = cur.next {
		if cur != node {
			prev = cur
			continue
		}
		if prev == nil {
			l.head = cur.next
		} else {
			prev.next = cur.next
		}
		if l.tail == cur {
			l.tail = prev
		}
		cur.unlink()
		return nil
	}
	return ErrNodeNotFound
}

// Purge drops every node and resets the list
func (l *List[T]) Purge() {
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
func (l *List[T]) Count() int {
	count := 0
	for cur := l.head; cur != nil; cur = cur.next {
		count++
	}
	return count
}

// Index returns the i-th node or nil
func (l *List[T]) Index(i int) *Node[T] {
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
func (l *List[T]) Values() []T {
	values := make([]T, 0)
	for cur := l.head; cur != nil; cur = cur.next {
		values = append(values, cur.Value)
	}
	return values
}

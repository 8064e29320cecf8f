// Package ticket turns resolved orders into kitchen pickup tickets: the
// wrapping ticket counter, the printed-order history and the receipt layout.
package ticket

import "sync"

// Allocator hands out pickup numbers in the range 1 through 99, wrapping
// back to 1. Numbers are consumed at allocation; a failed print still
// burns its number, which matches how the counter behaves on the wall
// display the kitchen staff read it from.
type Allocator struct {
	mu   sync.Mutex
	next int
}

// NewAllocator starts the counter at 1.
func NewAllocator() *Allocator {
	return &Allocator{next: 1}
}

// Next returns the current number and advances the counter.
func (a *Allocator) Next() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.next
	a.next++
	if a.next > 99 {
		a.next = 1
	}

	return n
}

// Peek returns the number the next call to Next will hand out.
func (a *Allocator) Peek() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

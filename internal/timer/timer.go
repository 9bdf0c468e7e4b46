// Package timer implements the sorted idle-timeout registry of §4.B: a
// strictly non-decreasing doubly-linked list of expiry nodes, ticked from a
// single thread (the reactor) with no internal locking. Ported from
// original_source/Timer/timer.hpp (util_timer / sort_timer_lst).
package timer

import "time"

// Slot is one entry in the list: an absolute expiry time and the close
// callback to invoke when it elapses. Owner is opaque to the list — it is
// whatever the reactor needs to close the connection (matching the original's
// client_data back-reference).
type Slot struct {
	Expire time.Time
	Owner  interface{}

	prev *Slot
	next *Slot
	list *List
}

// List is the ascending-sorted, doubly-linked idle-timer registry. It is not
// safe for concurrent use: per §4.B and §5, Add/Adjust/Remove/Tick are all
// called from the single reactor thread, so no lock is taken here.
type List struct {
	head *Slot
	tail *Slot
	size int

	// CloseFunc is invoked by Tick for every expired slot, in head-to-tail
	// (earliest-first) order, before the slot is unlinked.
	CloseFunc func(owner interface{})
}

// New creates an empty timer list.
func New(closeFunc func(owner interface{})) *List {
	return &List{CloseFunc: closeFunc}
}

// Len reports the number of live slots.
func (l *List) Len() int { return l.size }

// Add inserts a new slot with the given expiry and owner, returning a handle
// the caller must retain to later Adjust or Remove it.
func (l *List) Add(expire time.Time, owner interface{}) *Slot {
	s := &Slot{Expire: expire, Owner: owner, list: l}
	l.insertFrom(s, l.head)
	l.size++
	activeTotal.Inc()
	return s
}

// Adjust is called only when s.Expire has just been extended (moved toward
// the tail). It first tries an O(1) local check — if s has no successor, or
// its new expiry still does not exceed the successor's, no move is needed —
// and otherwise detaches and re-inserts starting the scan from s.next, never
// walking back toward the head.
func (l *List) Adjust(s *Slot, newExpire time.Time) {
	s.Expire = newExpire

	if s.next == nil || !s.Expire.After(s.next.Expire) {
		return
	}

	from := s.next
	l.unlink(s)
	l.insertFrom(s, from)
}

// Remove unlinks s from the list. No-op if s is nil or already removed.
func (l *List) Remove(s *Slot) {
	if s == nil || s.list != l {
		return
	}
	l.unlink(s)
	s.list = nil
	l.size--
	activeTotal.Dec()
}

// Tick closes and evicts every slot whose expiry is at or before now,
// walking from the head while it remains expired, matching the original's
// tick(): "while head.expire <= now, invoke callback, unlink, free".
func (l *List) Tick(now time.Time) int {
	evicted := 0
	for l.head != nil && !l.head.Expire.After(now) {
		s := l.head
		l.unlink(s)
		s.list = nil
		l.size--
		activeTotal.Dec()
		evictedTotal.Inc()
		evicted++
		if l.CloseFunc != nil {
			l.CloseFunc(s.Owner)
		}
	}
	return evicted
}

// insertFrom inserts s into the list, scanning forward starting at from
// (or from the head if from is nil) until it finds the first slot whose
// expiry is strictly greater than s's, preserving non-decreasing order.
func (l *List) insertFrom(s *Slot, from *Slot) {
	if l.head == nil {
		l.head, l.tail = s, s
		s.prev, s.next = nil, nil
		return
	}

	cur := from
	if cur == nil {
		cur = l.head
	}

	for cur != nil && !cur.Expire.After(s.Expire) {
		cur = cur.next
	}

	switch {
	case cur == nil:
		// Append at tail.
		s.prev = l.tail
		s.next = nil
		l.tail.next = s
		l.tail = s
	case cur.prev == nil:
		// Insert at head.
		s.prev = nil
		s.next = cur
		cur.prev = s
		l.head = s
	default:
		s.prev = cur.prev
		s.next = cur
		cur.prev.next = s
		cur.prev = s
	}
}

// unlink detaches s from the list's pointers without touching size/list.
func (l *List) unlink(s *Slot) {
	if s.prev != nil {
		s.prev.next = s.next
	} else {
		l.head = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	} else {
		l.tail = s.prev
	}
	s.prev, s.next = nil, nil
}

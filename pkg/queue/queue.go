// ABOUTME: Ordered track queue with loop modes and play history
// ABOUTME: Decides which track plays next when the current one ends
package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/lavaclient/lava-go/pkg/track"
)

// LoopMode controls what Next does with the track it returns.
type LoopMode int

const (
	LoopOff   LoopMode = iota // consume the head into history
	LoopTrack                 // keep returning the head
	LoopQueue                 // rotate the head to the tail
)

func (m LoopMode) String() string {
	switch m {
	case LoopOff:
		return "off"
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	}
	return fmt.Sprintf("LoopMode(%d)", int(m))
}

// ParseLoopMode accepts "off", "track" or "queue" (also "none", "current",
// "all").
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(s) {
	case "off", "none":
		return LoopOff, nil
	case "track", "current":
		return LoopTrack, nil
	case "queue", "all":
		return LoopQueue, nil
	}
	return LoopOff, fmt.Errorf("unknown loop mode %q", s)
}

var (
	ErrEmpty           = errors.New("queue is empty")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Error carries the failed operation and index. It unwraps to ErrEmpty or
// ErrIndexOutOfRange.
type Error struct {
	Op    string
	Index int
	Len   int
	Err   error
}

func (e *Error) Error() string {
	if errors.Is(e.Err, ErrIndexOutOfRange) {
		return fmt.Sprintf("queue %s: index %d with length %d: %v", e.Op, e.Index, e.Len, e.Err)
	}
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const DefaultHistorySize = 100

// Queue is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	items   []track.Track
	history []track.Track
	mode    LoopMode
	maxHist int

	// index in items of the entry that Next last returned and kept, or -1
	current int

	shuffle func(n int, swap func(i, j int))

	// closed when tracks arrive; created by Wait
	ready chan struct{}
}

// New returns an empty queue with loop off.
func New() *Queue {
	return &Queue{
		maxHist: DefaultHistorySize,
		current: -1,
		shuffle: rand.Shuffle,
	}
}

// Add appends tracks to the tail.
func (q *Queue) Add(tracks ...track.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, tracks...)
	q.wakeLocked()
}

// AddFront puts tracks at the head, ahead of everything else.
func (q *Queue) AddFront(tracks ...track.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.insertLocked(0, tracks)
	q.wakeLocked()
}

// Insert places tracks at index i; i == Len() appends.
func (q *Queue) Insert(i int, tracks ...track.Track) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i > len(q.items) {
		return &Error{Op: "insert", Index: i, Len: len(q.items), Err: ErrIndexOutOfRange}
	}
	q.insertLocked(i, tracks)
	q.wakeLocked()
	return nil
}

func (q *Queue) insertLocked(i int, tracks []track.Track) {
	if len(tracks) == 0 {
		return
	}
	head := append([]track.Track(nil), q.items[:i]...)
	head = append(head, tracks...)
	q.items = append(head, q.items[i:]...)
	if q.current >= i {
		q.current += len(tracks)
	}
}

func (q *Queue) wakeLocked() {
	if q.ready != nil && len(q.items) > 0 {
		close(q.ready)
		q.ready = nil
	}
}

// Next returns the track to play next and applies the loop mode.
func (q *Queue) Next() (track.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nextLocked()
}

// Wait is Next, but blocks until a track is queued or ctx is done.
func (q *Queue) Wait(ctx context.Context) (track.Track, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			defer q.mu.Unlock()
			return q.nextLocked()
		}
		if q.ready == nil {
			q.ready = make(chan struct{})
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return track.Track{}, ctx.Err()
		case <-ready:
		}
	}
}

// Take removes the track at index i and returns it as the next track to
// play, skipping the ones before it. LoopTrack keeps it at the head to
// repeat; LoopQueue moves it to the tail.
func (q *Queue) Take(i int) (track.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.items) {
		return track.Track{}, &Error{Op: "take", Index: i, Len: len(q.items), Err: ErrIndexOutOfRange}
	}

	t := q.items[i]
	q.items = append(q.items[:i:i], q.items[i+1:]...)
	switch q.mode {
	case LoopTrack:
		q.items = append([]track.Track{t}, q.items...)
		q.current = 0
	case LoopQueue:
		q.items = append(q.items, t)
		q.current = len(q.items) - 1
	default:
		q.current = -1
	}
	q.remember(t)
	return t, nil
}

func (q *Queue) nextLocked() (track.Track, error) {
	if len(q.items) == 0 {
		q.current = -1
		return track.Track{}, &Error{Op: "next", Err: ErrEmpty}
	}

	head := q.items[0]
	switch q.mode {
	case LoopTrack:
		q.current = 0
		return head, nil
	case LoopQueue:
		q.items = append(q.items[1:], head)
		q.current = len(q.items) - 1
	default:
		q.items = q.items[1:]
		q.current = -1
	}
	q.remember(head)
	return head, nil
}

func (q *Queue) remember(t track.Track) {
	q.history = append(q.history, t)
	if over := len(q.history) - q.maxHist; over > 0 {
		q.history = append([]track.Track(nil), q.history[over:]...)
	}
}

// Peek returns the head without advancing.
func (q *Queue) Peek() (track.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return track.Track{}, &Error{Op: "peek", Err: ErrEmpty}
	}
	return q.items[0], nil
}

// Get returns the track at index i.
func (q *Queue) Get(i int) (track.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.items) {
		return track.Track{}, &Error{Op: "get", Index: i, Len: len(q.items), Err: ErrIndexOutOfRange}
	}
	return q.items[i], nil
}

// Remove deletes and returns the track at index i. Removing the entry a
// LoopTrack queue is repeating ends the repeat.
func (q *Queue) Remove(i int) (track.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.items) {
		return track.Track{}, &Error{Op: "remove", Index: i, Len: len(q.items), Err: ErrIndexOutOfRange}
	}

	t := q.items[i]
	q.items = append(q.items[:i:i], q.items[i+1:]...)
	switch {
	case i == q.current:
		q.current = -1
	case i < q.current:
		q.current--
	}
	return t, nil
}

// Shuffle randomizes the order of waiting tracks. The entry currently kept
// by a loop mode stays where it is.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := make([]int, 0, len(q.items))
	for i := range q.items {
		if i != q.current {
			idx = append(idx, i)
		}
	}
	q.shuffle(len(idx), func(a, b int) {
		ia, ib := idx[a], idx[b]
		q.items[ia], q.items[ib] = q.items[ib], q.items[ia]
	})
}

// Reverse flips the order of the queue.
func (q *Queue) Reverse() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, j := 0, len(q.items)-1; i < j; i, j = i+1, j-1 {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	}
	if q.current >= 0 {
		q.current = len(q.items) - 1 - q.current
	}
}

// Clear removes every waiting track. History and loop mode are kept.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.current = -1
}

// Reset clears tracks and history and turns looping off.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.history = nil
	q.current = -1
	q.mode = LoopOff
}

// SetLoopMode takes effect from the next call to Next.
func (q *Queue) SetLoopMode(m LoopMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mode = m
}

func (q *Queue) LoopMode() LoopMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mode
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Tracks returns a copy of the waiting tracks, head first.
func (q *Queue) Tracks() []track.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]track.Track(nil), q.items...)
}

// HistoryAt returns a previously played track; 0 is the most recent.
func (q *Queue) HistoryAt(i int) (track.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.history) {
		return track.Track{}, &Error{Op: "history", Index: i, Len: len(q.history), Err: ErrIndexOutOfRange}
	}
	return q.history[len(q.history)-1-i], nil
}

// PopHistory removes and returns a previously played track; 0 is the most
// recent. Pair it with AddFront to go back a track.
func (q *Queue) PopHistory(i int) (track.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.history) {
		return track.Track{}, &Error{Op: "pop history", Index: i, Len: len(q.history), Err: ErrIndexOutOfRange}
	}
	j := len(q.history) - 1 - i
	t := q.history[j]
	q.history = append(q.history[:j:j], q.history[j+1:]...)
	return t, nil
}

// History returns a copy of previously played tracks, oldest first.
func (q *Queue) History() []track.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]track.Track(nil), q.history...)
}

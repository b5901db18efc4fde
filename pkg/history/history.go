package history

import (
	"sync"
	"time"

	"github.com/bmharper/ringbuffer"
)

const DefaultSize = 50

// Entry is one resolved prediction cycle
type Entry struct {
	Generation uint64    `json:"generation"`
	Source     string    `json:"source"`          // URI of the source image
	Text       string    `json:"text,omitempty"`  // Display text, if the cycle succeeded
	Error      string    `json:"error,omitempty"` // User facing error message, if the cycle failed
	At         time.Time `json:"at"`
}

// History is a bounded list of recent results.
// When full, the oldest entry is dropped.
type History struct {
	lock sync.Mutex
	size int
	ring ringbuffer.RingP[Entry]
}

func New(size int) *History {
	if size <= 0 {
		size = DefaultSize
	}
	return &History{
		size: size,
		ring: ringbuffer.NewRingP[Entry](size),
	}
}

func (h *History) Add(e Entry) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.ring.Add(e)
}

// List returns the entries, newest first
func (h *History) List() []Entry {
	h.lock.Lock()
	defer h.lock.Unlock()
	n := h.ring.Len()
	list := make([]Entry, 0, n)
	for i := n - 1; i >= 0; i-- {
		list = append(list, h.ring.Peek(i))
	}
	return list
}

func (h *History) Len() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.ring.Len()
}

func (h *History) Clear() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.ring = ringbuffer.NewRingP[Entry](h.size)
}

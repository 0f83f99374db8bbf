package media

import "sync"

// State is the live view of one placeholder's job. The zero value is what
// an untouched placeholder reports.
type State struct {
	IsGenerating   bool   `json:"isGenerating"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
	Error          string `json:"error,omitempty"`
}

type entry struct {
	attempt uint64
	state   State
	stop    func()
}

// registry maps placeholder ids to their current job. Each key is updated
// independently; writes tagged with a superseded attempt are dropped.
type registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64
	closed  bool
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*entry)}
}

// begin resets id to a fresh generating state and returns the attempt
// token plus a channel closed when the attempt's ticker must stop.
func (r *registry) begin(id string) (uint64, <-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, nil, false
	}
	if prev, ok := r.entries[id]; ok && prev.stop != nil {
		prev.stop()
	}
	r.seq++
	stopCh := make(chan struct{})
	r.entries[id] = &entry{
		attempt: r.seq,
		state:   State{IsGenerating: true},
		stop:    sync.OnceFunc(func() { close(stopCh) }),
	}
	return r.seq, stopCh, true
}

func (r *registry) update(id string, attempt uint64, fn func(*State)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if r.closed || !ok || e.attempt != attempt {
		return false
	}
	fn(&e.state)
	return true
}

// tick advances elapsed time for a running attempt. It reports false once
// the attempt is finished or superseded.
func (r *registry) tick(id string, attempt uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if r.closed || !ok || e.attempt != attempt || !e.state.IsGenerating {
		return false
	}
	e.state.ElapsedSeconds++
	return true
}

// finish stops the attempt's ticker and records the terminal state. It
// returns ErrSuperseded when a newer attempt owns id and ErrManagerClosed
// after close. A forgotten id is not an error.
func (r *registry) finish(id string, attempt uint64, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrManagerClosed
	}
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	if e.attempt != attempt {
		return ErrSuperseded
	}
	if e.stop != nil {
		e.stop()
		e.stop = nil
	}
	e.state.IsGenerating = false
	e.state.Error = errMsg
	return nil
}

func (r *registry) get(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e.state
	}
	return State{}
}

func (r *registry) snapshot() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]State, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.state
	}
	return out
}

func (r *registry) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		if e.stop != nil {
			e.stop()
		}
		delete(r.entries, id)
	}
}

// close stops every ticker and rejects all later writes.
func (r *registry) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, e := range r.entries {
		if e.stop != nil {
			e.stop()
			e.stop = nil
		}
	}
}

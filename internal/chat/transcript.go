package chat

import "sync"

// Observer is notified after every append with the new turn and its position
type Observer func(turn Turn, index int)

// Transcript is the append-only, ordered log of turns for one session
type Transcript struct {
	mu        sync.RWMutex
	turns     []Turn
	observers map[int]Observer
	nextID    int
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{
		turns:     []Turn{},
		observers: make(map[int]Observer),
	}
}

// Append adds a turn to the end of the transcript and notifies observers
func (t *Transcript) Append(turn Turn) {
	t.mu.Lock()
	t.turns = append(t.turns, turn)
	index := len(t.turns) - 1
	observers := make([]Observer, 0, len(t.observers))
	for id := 0; id < t.nextID; id++ {
		if obs, ok := t.observers[id]; ok {
			observers = append(observers, obs)
		}
	}
	t.mu.Unlock()

	for _, obs := range observers {
		obs(turn, index)
	}
}

// All returns a copy of every turn in append order
func (t *Transcript) All() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	turns := make([]Turn, len(t.turns))
	copy(turns, t.turns)
	return turns
}

// Len returns the number of turns
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Subscribe registers an observer and returns a function that removes it
func (t *Transcript) Subscribe(obs Observer) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.observers[id] = obs
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.observers, id)
	}
}

package backend

// Stream is a finite, non-restartable sequence of text fragments.
// Recv returns io.EOF once the sequence is complete.
type Stream interface {
	Recv() (string, error)
	Close() error
}

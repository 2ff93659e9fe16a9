package agent

import (
	"context"
	"io"
	"sync"
)

// staticStream replays a fixed list of deltas.
type staticStream struct {
	deltas []string
	pos    int
}

// NewStaticStream returns a stream over already known deltas.
func NewStaticStream(deltas ...string) Stream {
	return &staticStream{deltas: deltas}
}

func (s *staticStream) Recv() (string, error) {
	if s.pos >= len(s.deltas) {
		return "", io.EOF
	}
	d := s.deltas[s.pos]
	s.pos++
	return d, nil
}

func (s *staticStream) Close() error {
	s.pos = len(s.deltas)
	return nil
}

// funcStream runs a push-style producer in a goroutine and exposes it as a
// pull-style Stream.
type funcStream struct {
	ch     chan string
	err    error
	cancel context.CancelFunc
	once   sync.Once
}

// NewFuncStream starts produce and relays everything it emits. produce must
// return once ctx is cancelled.
func NewFuncStream(ctx context.Context, produce func(ctx context.Context, emit func(string) error) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &funcStream{ch: make(chan string), cancel: cancel}
	go func() {
		defer close(s.ch)
		s.err = produce(ctx, func(delta string) error {
			select {
			case s.ch <- delta:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return s
}

func (s *funcStream) Recv() (string, error) {
	delta, ok := <-s.ch
	if ok {
		return delta, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *funcStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		// let the producer observe the cancellation and exit
		for range s.ch {
		}
	})
	return nil
}

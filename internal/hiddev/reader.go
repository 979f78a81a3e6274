package hiddev

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/itsOwen/SteamDeckMotion/internal/monitoring"
)

// FrameLen is the length in bytes of one controller motion report.
const FrameLen = 64

// DefaultStartMarker is the byte sequence that opens each motion report in
// the device stream. The compatibility value matches the controller firmware
// report header.
var DefaultStartMarker = []byte{0x01, 0x00, 0x09, 0x40}

// Reader reads reports from a HID device and delivers frame copies to
// subscribers. Delivery is latest-wins: a subscriber that has not consumed
// its previous frame gets it replaced by the newer one, so a slow consumer
// observes increment gaps rather than stale backlog.
type Reader[T Devicer] struct {
	dev         T
	frameLen    int
	startMarker []byte

	subscribers  map[string]chan []byte
	subscriberMu sync.Mutex

	dropped atomic.Uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReader creates a Reader for the given device. frameLen <= 0 selects
// FrameLen.
func NewReader[T Devicer](dev T, frameLen int) *Reader[T] {
	if frameLen <= 0 {
		frameLen = FrameLen
	}
	return &Reader[T]{
		dev:         dev,
		frameLen:    frameLen,
		subscribers: make(map[string]chan []byte),
	}
}

// SetStartMarker sets the byte sequence used to locate the start of a report
// in the device stream. With no marker the stream is chunked into fixed
// frameLen frames as read.
func (r *Reader[T]) SetStartMarker(marker []byte) {
	r.startMarker = append([]byte(nil), marker...)
}

// Subscribe creates a new channel for receiving frames from the device. The
// returned ID identifies the channel when unsubscribing.
func (r *Reader[T]) Subscribe() (string, <-chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, 1)
	r.subscriberMu.Lock()
	defer r.subscriberMu.Unlock()
	r.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (r *Reader[T]) Unsubscribe(id string) {
	r.subscriberMu.Lock()
	defer r.subscriberMu.Unlock()
	if ch, ok := r.subscribers[id]; ok {
		close(ch)
		delete(r.subscribers, id)
	}
}

// Start launches the read loop. It is a no-op when the loop is already
// running; after Stop it may be called again.
func (r *Reader[T]) Start(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	done := make(chan struct{})
	r.done = done
	go func() {
		defer close(done)
		r.monitor(ctx)
	}()
	return nil
}

// Stop cancels the read loop and waits for it to exit. The device stays open
// so the reader can be started again.
func (r *Reader[T]) Stop() {
	r.runMu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.done = nil
	r.runMu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Close stops the read loop and closes the underlying device.
func (r *Reader[T]) Close() error {
	r.Stop()
	return r.dev.Close()
}

// Dropped reports how many frames were discarded because a subscriber had
// not consumed its previous frame.
func (r *Reader[T]) Dropped() uint64 {
	return r.dropped.Load()
}

// monitor reads from the device and publishes assembled frames until the
// context is cancelled or the device read fails.
func (r *Reader[T]) monitor(ctx context.Context) {
	chunks := make(chan []byte)
	errc := make(chan error, 1)

	// The blocking device read runs in its own goroutine so the outer loop
	// can observe context cancellation promptly. The goroutine exits on read
	// error, which includes the device being closed.
	go func() {
		for {
			buf := make([]byte, 512)
			n, err := r.dev.Read(buf)
			if err != nil {
				select {
				case errc <- err:
				case <-ctx.Done():
				}
				return
			}
			select {
			case chunks <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
	}()

	var pending []byte
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errc:
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				monitoring.Logf("HidDevReader: device read failed: %v", err)
			}
			return
		case chunk := <-chunks:
			pending = append(pending, chunk...)
			pending = r.extractFrames(pending)
		}
	}
}

// extractFrames publishes every complete frame found in pending and returns
// the unconsumed remainder.
func (r *Reader[T]) extractFrames(pending []byte) []byte {
	for {
		start := 0
		if len(r.startMarker) > 0 {
			idx := bytes.Index(pending, r.startMarker)
			if idx < 0 {
				// Keep a marker-sized tail so a marker split across reads is
				// still found.
				if keep := len(r.startMarker) - 1; len(pending) > keep {
					pending = pending[len(pending)-keep:]
				}
				return pending
			}
			start = idx
		}
		if len(pending)-start < r.frameLen {
			if start > 0 {
				pending = pending[start:]
			}
			return pending
		}
		frame := make([]byte, r.frameLen)
		copy(frame, pending[start:start+r.frameLen])
		pending = pending[start+r.frameLen:]
		r.publish(frame)
	}
}

// publish hands a frame to every subscriber. A still-unconsumed previous
// frame is replaced by the new one and counted as dropped. Frames are never
// mutated after publication, so sharing one slice between subscribers is
// safe.
func (r *Reader[T]) publish(frame []byte) {
	r.subscriberMu.Lock()
	defer r.subscriberMu.Unlock()
	for _, ch := range r.subscribers {
		select {
		case ch <- frame:
			continue
		default:
		}
		select {
		case <-ch:
			r.dropped.Add(1)
		default:
		}
		select {
		case ch <- frame:
		default:
			r.dropped.Add(1)
		}
	}
}

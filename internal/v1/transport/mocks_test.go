package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/protocol"
)

// fakeConn implements wsConnection in memory. Reads pop scripted frames and
// then block until the connection closes; writes are recorded for assertions.
type fakeConn struct {
	mu       sync.Mutex
	cond     *sync.Cond
	inbound  [][]byte
	writes   []recordedFrame
	closed   bool
	writeErr error
}

type recordedFrame struct {
	messageType int
	data        []byte
}

func newFakeConn(frames ...[]byte) *fakeConn {
	f := &fakeConn{inbound: frames}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.inbound) == 0 && !f.closed {
		f.cond.Wait()
	}
	if len(f.inbound) == 0 {
		return 0, nil, net.ErrClosed
	}
	data := f.inbound[0]
	f.inbound = f.inbound[1:]
	return websocket.TextMessage, data, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.writes = append(f.writes, recordedFrame{messageType: messageType, data: buf})
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
	return nil
}

func (f *fakeConn) SetReadDeadline(_ time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(_ time.Time) error { return nil }

// push makes another frame readable, as if the peer had sent it.
func (f *fakeConn) push(data []byte) {
	f.mu.Lock()
	f.inbound = append(f.inbound, data)
	f.cond.Broadcast()
	f.mu.Unlock()
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// textFrames returns the recorded text payloads, skipping control frames.
func (f *fakeConn) textFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, 0, len(f.writes))
	for _, w := range f.writes {
		if w.messageType == websocket.TextMessage {
			out = append(out, w.data)
		}
	}
	return out
}

func (f *fakeConn) wroteCloseFrame() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.writes {
		if w.messageType == websocket.CloseMessage {
			return true
		}
	}
	return false
}

// decodedFrames decodes every recorded text frame.
func (f *fakeConn) decodedFrames(t *testing.T) []protocol.Message {
	t.Helper()
	frames := f.textFrames()
	out := make([]protocol.Message, 0, len(frames))
	for _, data := range frames {
		msg, err := protocol.Decode(data)
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

// waitForFrames polls until the conn has recorded at least n text frames.
func (f *fakeConn) waitForFrames(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.textFrames()) >= n
	}, 2*time.Second, 5*time.Millisecond, "expected %d frames, got %d", n, len(f.textFrames()))
}

package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dosecore/backend/internal/store"
)

type recordingNotifier struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (r *recordingNotifier) Notify(_ context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func TestDrainer_DrainsQueuedNotifications(t *testing.T) {
	st, err := store.NewInMemory("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.EnqueueNotification([]byte("one")))
	require.NoError(t, st.EnqueueNotification([]byte("two")))

	rec := &recordingNotifier{}
	d := NewDrainer(st, rec, zap.NewNop(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	defer cancel()

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 10*time.Millisecond)
	d.Stop()
}

func TestLogNotifier_NeverFails(t *testing.T) {
	n := NewLogNotifier(zap.NewNop())
	assert.NoError(t, n.Notify(context.Background(), []byte("payload")))
}

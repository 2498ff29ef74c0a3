package notify

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscherer/site-builder/internal/eventstore"
)

type fakeConn struct {
	subjects []string
	messages [][]byte
	failWith error
	closed   bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.subjects = append(f.subjects, subject)
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeConn) FlushWithContext(context.Context) error { return nil }
func (f *fakeConn) Close()                                 { f.closed = true }

func TestNotifier_ForwardsFailuresAndPublishes(t *testing.T) {
	conn := &fakeConn{}
	n := newNotifier(conn, "builder.events", nil)

	started, err := eventstore.NewRunStarted("run-1", "site", "abc", []string{"commit"}, false, false, false)
	require.NoError(t, err)
	failed, err := eventstore.NewStageFailed("run-1", "site", "build", "boom", stdErrors.New("exit status 1"))
	require.NoError(t, err)
	published, err := eventstore.NewPublished("run-1", "site", "rsync", "web@host:/srv")
	require.NoError(t, err)

	for _, e := range []eventstore.Event{started, failed, published} {
		require.NoError(t, n.Emit(t.Context(), e))
	}

	require.Len(t, conn.messages, 2)
	assert.Equal(t, []string{"builder.events", "builder.events"}, conn.subjects)

	var msg RunEvent
	require.NoError(t, json.Unmarshal(conn.messages[0], &msg))
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, "site", msg.Project)
	assert.Equal(t, eventstore.TypeStageFailed, msg.Type)

	var data struct {
		Stage string `json:"stage"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "build", data.Stage)
}

func TestNotifier_PublishError(t *testing.T) {
	conn := &fakeConn{failWith: stdErrors.New("nats: connection closed")}
	n := newNotifier(conn, "builder.events", nil)

	published, err := eventstore.NewPublished("run-1", "site", "noop", "")
	require.NoError(t, err)

	err = n.Emit(t.Context(), published)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")

	require.NoError(t, n.Close())
	assert.True(t, conn.closed)
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "builder.events", nil)
	require.Error(t, err)
}

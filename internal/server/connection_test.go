package server

import (
	"bytes"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lordbasex/queued/internal/queue"
)

func newTestConnection(t *testing.T, input string) (*Connection, *bytes.Buffer) {
	t.Helper()
	table := queue.NewTable()
	limiter := NewRateLimiter(1000, 1000)
	log := logrus.NewEntry(logrus.New())
	registry := NewRegistry(log)
	metrics := NewMetrics(prometheus.NewRegistry(), table)

	var out bytes.Buffer
	id := registry.Register("127.0.0.1:1")
	conn := NewConnection(id, "127.0.0.1:1", bytes.NewBufferString(input), &out, table, limiter, registry, metrics, log)
	return conn, &out
}

func TestConnectionPushThenPop(t *testing.T) {
	conn, out := newTestConnection(t, "PUSH 'q' 'hello';POP 'q';QUIT;")
	conn.Serve()
	assert.Equal(t, "SUCCESS\r\nhello\r\nBye Bye\r\n", out.String())
}

func TestConnectionMissingQueue(t *testing.T) {
	conn, out := newTestConnection(t, "POP 'missing';")
	conn.Serve()
	assert.Equal(t, "NO SUCH QUEUE\r\n", out.String())
}

func TestConnectionDoublePop(t *testing.T) {
	conn, out := newTestConnection(t, "PUSH 'q' 'x';POP 'q';POP 'q';")
	conn.Serve()
	assert.Equal(t, "SUCCESS\r\nx\r\nNO DATA\r\n", out.String())
}

func TestConnectionTransactionCommitRoundTrip(t *testing.T) {
	conn, out := newTestConnection(t, "BEGIN;PUSH 'q' 'v';COMMIT;POP 'q';")
	conn.Serve()
	assert.Equal(t, "v\r\n", out.String())
}

func TestConnectionAbortRestoresPoppedTail(t *testing.T) {
	table := queue.NewTable()
	table.GetOrCreate("q").PushBack("a")
	table.GetOrCreate("q").PushBack("b")
	table.GetOrCreate("q").PushBack("c")

	limiter := NewRateLimiter(1000, 1000)
	log := logrus.NewEntry(logrus.New())
	registry := NewRegistry(log)
	metrics := NewMetrics(prometheus.NewRegistry(), table)

	var out bytes.Buffer
	id := registry.Register("127.0.0.1:1")
	conn := NewConnection(id, "127.0.0.1:1", bytes.NewBufferString("BEGIN;POP 'q';ABORT;POP 'q';POP 'q';POP 'q';"), &out, table, limiter, registry, metrics, log)
	conn.Serve()

	assert.Equal(t, "a\r\nb\r\nc\r\na\r\n", out.String())
}

func TestConnectionEscapedQuote(t *testing.T) {
	conn, out := newTestConnection(t, `PUSH 'q' 'it\'s';POP 'q';`)
	conn.Serve()
	assert.Equal(t, "SUCCESS\r\nit's\r\n", out.String())
}

func TestConnectionParseErrorKeepsConnectionOpen(t *testing.T) {
	conn, out := newTestConnection(t, "PUSH q 'v';PUSH 'q' 'v';POP 'q';")
	conn.Serve()
	assert.Equal(t, "Unqouted character: q\r\nSUCCESS\r\nv\r\n", out.String())
}

func TestConnectionEOFWithoutTrailingDelimiterIsDisconnect(t *testing.T) {
	conn, out := newTestConnection(t, "PUSH 'q' 'v';POP 'q'")
	conn.Serve()
	assert.Equal(t, "SUCCESS\r\n", out.String())
}

func TestConnectionRollsBackOpenTransactionOnDisconnect(t *testing.T) {
	table := queue.NewTable()
	table.GetOrCreate("q").PushBack("a")

	limiter := NewRateLimiter(1000, 1000)
	log := logrus.NewEntry(logrus.New())
	registry := NewRegistry(log)
	metrics := NewMetrics(prometheus.NewRegistry(), table)

	var out bytes.Buffer
	id := registry.Register("127.0.0.1:1")
	conn := NewConnection(id, "127.0.0.1:1", bytes.NewBufferString("BEGIN;POP 'q';"), &out, table, limiter, registry, metrics, log)
	conn.Serve()

	q, ok := table.Get("q")
	require.True(t, ok)
	value, ok := q.PopFront()
	require.True(t, ok)
	assert.Equal(t, "a", value)
}

type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestConnectionWriteFailureEndsLoop(t *testing.T) {
	table := queue.NewTable()
	limiter := NewRateLimiter(1000, 1000)
	log := logrus.NewEntry(logrus.New())
	registry := NewRegistry(log)
	metrics := NewMetrics(prometheus.NewRegistry(), table)

	id := registry.Register("127.0.0.1:1")
	conn := NewConnection(id, "127.0.0.1:1", bytes.NewBufferString("POP 'missing';POP 'missing';"), errWriter{}, table, limiter, registry, metrics, log)
	conn.Serve()

	assert.Equal(t, 0, registry.Len())
}

package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (net.Listener, *Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.MaxConnections = 4

	log := logrus.NewEntry(logrus.New())
	srv := New(cfg, prometheus.NewRegistry(), log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx, ln)

	return ln, srv
}

func TestServerEndToEndPushPop(t *testing.T) {
	ln, _ := startTestServer(t)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("PUSH 'q' 'hello';POP 'q';QUIT;"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	line1, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "SUCCESS\r\n", line1)

	line2, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "hello\r\n", line2)

	line3, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Bye Bye\r\n", line3)
}

func TestServerSharesOneQueueTableAcrossConnections(t *testing.T) {
	ln, srv := startTestServer(t)

	connA, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer connA.Close()
	_, err = connA.Write([]byte("PUSH 'q' 'v';"))
	require.NoError(t, err)
	_, err = bufio.NewReader(connA).ReadString('\n')
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	connB, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer connB.Close()
	_, err = connB.Write([]byte("POP 'q';"))
	require.NoError(t, err)
	line, err := bufio.NewReader(connB).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "v\r\n", line)

	require.NotNil(t, srv.Table())
}

package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/launix-de/icache/internal/command"
	"github.com/launix-de/icache/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	ctx := &command.Context{
		Store:       store.New(),
		Hashes:      store.DefaultHashThresholds,
		Compression: store.DefaultCompressionPolicy,
	}
	log := zerolog.Nop()
	ln, err := NewListener("127.0.0.1:0", 2, log)
	require.NoError(t, err)

	workers := make([]*Worker, 2)
	for i := range workers {
		workers[i] = NewWorker(i, ctx, ln.Handoffs(i), 0, log)
		go workers[i].Run()
	}
	go ln.Run()
	t.Cleanup(func() {
		ln.Stop()
		for _, w := range workers {
			w.Stop()
		}
	})
	return ln.Addr().String()
}

func TestServerRoundTrip(t *testing.T) {
	addr := startTestServer(t)
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("SET foo bar\r\n"))
	require.NoError(t, err)
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "+OK\r\n", line)

	_, err = conn.Write([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))
	require.NoError(t, err)
	header, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "$3\r\n", header)
	body := make([]byte, 5)
	_, err = r.Read(body)
	require.NoError(t, err)
	require.Equal(t, "bar\r\n", string(body))
}

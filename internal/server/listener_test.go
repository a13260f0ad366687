package server

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accept(t *testing.T, ln net.Listener) <-chan net.Conn {
	t.Helper()
	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(ch)
			return
		}
		ch <- conn
	}()
	return ch
}

func TestListenWithProxyProtocol(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", true)
	require.NoError(t, err)
	defer ln.Close()

	accepted := accept(t, ln)

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write([]byte("PROXY TCP4 192.0.2.1 192.0.2.2 1234 80\r\nping"))
	require.NoError(t, err)

	conn, ok := <-accepted
	require.True(t, ok)
	defer conn.Close()

	buf := make([]byte, 4)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
	assert.Equal(t, "192.0.2.1:1234", conn.RemoteAddr().String())
}

func TestListenPlain(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", false)
	require.NoError(t, err)
	defer ln.Close()

	accepted := accept(t, ln)

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	conn, ok := <-accepted
	require.True(t, ok)
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
}

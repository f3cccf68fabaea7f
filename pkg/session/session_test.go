package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func localPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		acceptCh <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server := <-acceptCh
	require.NotNil(t, server)
	return client, server
}

func TestNewSessionStartsInStarting(t *testing.T) {
	client, server := localPair(t)
	defer client.Close()
	defer server.Close()

	s := New("container-1", client, server)
	require.Equal(t, Starting, s.State())
}

func TestActivateTransitionsToActive(t *testing.T) {
	client, server := localPair(t)
	defer client.Close()
	defer server.Close()

	s := New("container-1", client, server)
	s.Activate()
	require.Equal(t, Active, s.State())
}

func TestCloseSocketsOnceIsIdempotent(t *testing.T) {
	client, server := localPair(t)
	s := New("container-1", client, server)
	s.Activate()

	require.NotPanics(t, func() {
		s.CloseSocketsOnce()
		s.CloseSocketsOnce()
		s.CloseSocketsOnce()
	})

	_, err := client.Write([]byte("x"))
	require.Error(t, err)
}

func TestMarkClosingThenClosed(t *testing.T) {
	client, server := localPair(t)
	defer client.Close()
	defer server.Close()

	s := New("container-1", client, server)
	s.Activate()
	s.MarkClosing()
	require.Equal(t, Closing, s.State())
	s.MarkClosed()
	require.Equal(t, Closed, s.State())
}

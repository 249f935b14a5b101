package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrissan/sctpmux/sctpcore"
)

func freeUDPAddress(t *testing.T) string {
	t.Helper()
	c, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := c.LocalAddr().String()
	require.NoError(t, c.Close())
	return addr
}

func TestEchoServerAndClient(t *testing.T) {
	addr := freeUDPAddress(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- runServer(ctx, &Config{ListenAddress: addr, LocalPort: 5000})
	}()

	stats, err := runClient(context.Background(), &Config{
		PeerAddress:  addr,
		LocalPort:    6000,
		RemotePort:   5000,
		Messages:     5,
		MessageSize:  32,
		StreamID:     1,
		PPID:         sctpcore.PPIDWebRTCBinary,
		DialAttempts: 5,
		DialTimeout:  2 * time.Second,
		ReplyTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, clientStats{sent: 5, received: 5}, stats)

	cancel()
	select {
	case err := <-serverDone:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestClientGivesUpWithoutServer(t *testing.T) {
	addr := freeUDPAddress(t)
	start := time.Now()
	_, err := runClient(context.Background(), &Config{
		PeerAddress:  addr,
		Messages:     1,
		MessageSize:  minMessageSize,
		DialAttempts: 1,
		DialTimeout:  100 * time.Millisecond,
		ReplyTimeout: time.Second,
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopbackTransportDeliversToSubscribers(t *testing.T) {
	transport := NewLoopbackTransport()
	ch, err := transport.Subscribe(TopicWallet)
	require.NoError(t, err)

	require.NoError(t, transport.Broadcast(TopicWallet, []byte("payload")))

	select {
	case got := <-ch:
		require.Equal(t, []byte("payload"), got)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received broadcast payload")
	}
}

func TestLoopbackTransportIsolatesTopics(t *testing.T) {
	transport := NewLoopbackTransport()
	walletCh, err := transport.Subscribe(TopicWallet)
	require.NoError(t, err)
	daoCh, err := transport.Subscribe(TopicDAO)
	require.NoError(t, err)

	require.NoError(t, transport.Broadcast(TopicDAO, []byte("dao-only")))

	select {
	case got := <-daoCh:
		require.Equal(t, []byte("dao-only"), got)
	case <-time.After(time.Second):
		t.Fatal("dao subscriber never received its broadcast")
	}

	select {
	case got := <-walletCh:
		t.Fatalf("wallet subscriber unexpectedly received %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

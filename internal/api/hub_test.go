package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"solana-vault-ledger/internal/domain"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func waitSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Subscribers() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StreamsCommittedEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, true)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()
	defer f.hub.Close()

	ctx := context.Background()
	v, err := f.svc.ListVaults(ctx)
	require.NoError(t, err)
	require.Empty(t, v)

	all := dial(t, srv, "")
	defer all.Close()
	waitSubscribers(t, f.hub, 1)

	created := f.initVault()

	filtered := dial(t, srv, "?vault="+created.Key)
	defer filtered.Close()
	other := dial(t, srv, "?vault="+alice)
	defer other.Close()
	waitSubscribers(t, f.hub, 3)

	_, err = f.svc.Faucet(ctx, alice, usdc, 500)
	require.NoError(t, err)
	_, err = f.svc.Deposit(ctx, created.Key, alice, 500)
	require.NoError(t, err)

	var e domain.Event
	require.NoError(t, all.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, all.ReadJSON(&e))
	assert.Equal(t, domain.EventVaultInitialized, e.Type)
	require.NoError(t, all.ReadJSON(&e))
	assert.Equal(t, domain.EventDeposit, e.Type)

	require.NoError(t, filtered.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, filtered.ReadJSON(&e))
	assert.Equal(t, domain.EventDeposit, e.Type)
	assert.Equal(t, uint64(500), e.Amount)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	assert.Error(t, other.ReadJSON(&e))
}

func TestHub_DropsDisconnectedAndSlowSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, false)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()
	defer f.hub.Close()

	conn := dial(t, srv, "")
	waitSubscribers(t, f.hub, 1)
	require.NoError(t, conn.Close())
	waitSubscribers(t, f.hub, 0)

	// A subscriber registered without a connection never drains.
	s, ok := f.hub.add("")
	require.True(t, ok)
	for i := 0; i <= subscriberBuffer; i++ {
		f.hub.Publish(&domain.Event{Type: domain.EventDeposit})
	}
	assert.Equal(t, 0, f.hub.Subscribers())
	select {
	case <-s.done:
	default:
		t.Fatal("slow subscriber was not closed")
	}
}

func TestHub_CloseRejectsNewSubscribers(t *testing.T) {
	h := NewHub(nil)
	h.Close()
	_, ok := h.add("")
	assert.False(t, ok)
}

func TestHub_CloseWaitsForAcceptedSubscribers(t *testing.T) {
	h := NewHub(nil)
	_, ok := h.add("")
	require.True(t, ok)

	closed := make(chan struct{})
	go func() {
		h.Close()
		close(closed)
	}()

	// The subscriber's loops were reserved by add; Close must wait for them.
	select {
	case <-closed:
		t.Fatal("Close returned before the subscriber goroutines finished")
	case <-time.After(50 * time.Millisecond):
	}

	h.wg.Done()
	h.wg.Done()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

package command

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdenton/battleshipd/internal/match"
	"github.com/rdenton/battleshipd/internal/protocol"
	"github.com/rdenton/battleshipd/internal/queue"
	"github.com/rdenton/battleshipd/internal/session"
)

// testClient wires a session.Client to a net.Pipe and returns a reader
// bound to the peer half, so assertions can read back what Send wrote.
func testClient(t *testing.T, id string) (*session.Client, *bufio.Reader) {
	t.Helper()
	server, peer := net.Pipe()
	t.Cleanup(func() { server.Close(); peer.Close() })
	codec := protocol.NewLineCodec(server, server)
	c := session.NewClient(id, server, codec, nil)
	t.Cleanup(c.Close)
	return c, bufio.NewReader(peer)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- result{line, err}
	}()
	select {
	case res := <-ch:
		require.NoError(t, res.err)
		return res.line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a line")
		return ""
	}
}

func noMatch() (match.Snapshot, bool) { return match.Snapshot{}, false }

func TestHandle_HelpAndUnknownCommand(t *testing.T) {
	r := session.NewRegistry(4)
	q := queue.New(r)
	h := New(r, q, noMatch)

	sender, peer := testClient(t, "alice")
	require.NoError(t, r.Admit("alice", sender))

	h.Handle(sender, "/help")
	line := readLine(t, peer)
	assert.Contains(t, line, "commands:")

	h.Handle(sender, "/nonsense")
	line = readLine(t, peer)
	assert.Contains(t, line, "unknown command")
}

func TestHandle_ChatRequiresBody(t *testing.T) {
	r := session.NewRegistry(4)
	q := queue.New(r)
	h := New(r, q, noMatch)

	sender, peer := testClient(t, "alice")
	require.NoError(t, r.Admit("alice", sender))

	h.Handle(sender, "/chat")
	line := readLine(t, peer)
	assert.Contains(t, line, "usage: /chat")
}

func TestBroadcastChat_ExcludesSenderAndReachesOthers(t *testing.T) {
	r := session.NewRegistry(4)
	q := queue.New(r)
	h := New(r, q, noMatch)

	sender, senderPeer := testClient(t, "alice")
	other, otherPeer := testClient(t, "bob")
	require.NoError(t, r.Admit("alice", sender))
	require.NoError(t, r.Admit("bob", other))

	h.BroadcastChat(sender, "hello there")

	line := readLine(t, otherPeer)
	assert.Contains(t, line, "[CHAT] ")
	assert.Contains(t, line, "alice")
	assert.Contains(t, line, "hello there")

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		senderPeer.Read(buf)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("chat must not be echoed back to the sender")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStatusText_ReportsQueuePositionWhenNoMatchLive(t *testing.T) {
	r := session.NewRegistry(4)
	q := queue.New(r)
	h := New(r, q, noMatch)

	sender, peer := testClient(t, "alice")
	require.NoError(t, r.Admit("alice", sender))
	q.Join("alice")

	h.Handle(sender, "/status")
	line := readLine(t, peer)
	assert.Contains(t, line, "#1 of 1")
}

func TestStatusText_ReportsLiveMatchForPlayers(t *testing.T) {
	r := session.NewRegistry(4)
	q := queue.New(r)
	lookup := func() (match.Snapshot, bool) {
		return match.Snapshot{PlayerA: "alice", PlayerB: "bob", TurnOwner: "alice", Phase: "turn"}, true
	}
	h := New(r, q, lookup)

	sender, peer := testClient(t, "alice")
	require.NoError(t, r.Admit("alice", sender))

	h.Handle(sender, "/status")
	line := readLine(t, peer)
	assert.Contains(t, line, "your turn")
	assert.Contains(t, line, "bob")
}

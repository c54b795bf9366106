package relay

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"OreChat/internal/backend"
	"OreChat/internal/chat"
	"OreChat/internal/completion"
	"OreChat/internal/prompt"
	"OreChat/internal/provider"
	"OreChat/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedUpstream answers call n with replies[n], or with "reply n" once the
// script runs out
type scriptedUpstream struct {
	mu      sync.Mutex
	calls   int
	replies []string
	sizes   []int
}

func (u *scriptedUpstream) next(req *prompt.Request) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := u.calls
	u.calls++
	u.sizes = append(u.sizes, len(req.History)+1)
	if n < len(u.replies) {
		return u.replies[n]
	}
	return fmt.Sprintf("reply %d", n)
}

func (u *scriptedUpstream) conversationSizes() []int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]int(nil), u.sizes...)
}

func (u *scriptedUpstream) Complete(_ context.Context, req *prompt.Request) (*provider.Completion, error) {
	return &provider.Completion{Text: u.next(req), FinishReason: "stop"}, nil
}

func (u *scriptedUpstream) Stream(_ context.Context, req *prompt.Request) (backend.Stream, error) {
	reply := u.next(req)
	var chunks []string
	if reply != "" {
		chunks = []string{reply}
	}
	return &fakeStream{chunks: chunks}, nil
}

func newRelayedSession(t *testing.T, up Upstream, mode string) *session.Controller {
	t.Helper()
	srv := httptest.NewServer(New(up, Options{Model: "test-model", Logger: quietLogger()}).Handler())
	t.Cleanup(srv.Close)

	var client completion.Client = completion.NewRelay(srv.URL, srv.Client())
	if mode == "batch" {
		client = completion.NewDirect(srv.URL, "", srv.Client())
	}

	ctrl := session.New(client, session.Options{Logger: quietLogger()})
	ctrl.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ctrl.WaitReady(ctx))
	t.Cleanup(ctrl.Close)
	return ctrl
}

// =============================================================================
// Sessions over the relay
// =============================================================================

func TestRelayedSession_MultiTurn(t *testing.T) {
	for _, mode := range []string{"stream", "batch"} {
		t.Run(mode, func(t *testing.T) {
			up := &scriptedUpstream{}
			ctrl := newRelayedSession(t, up, mode)

			for i := 0; i < 3; i++ {
				require.Equal(t, session.OutcomeReplied, ctrl.Submit(context.Background(), fmt.Sprintf("question %d", i)))
			}

			turns := ctrl.Turns()
			require.Len(t, turns, 7)
			assert.Equal(t, chat.AssistantTurn(session.DefaultGreeting), turns[0])
			assert.Equal(t, chat.AssistantTurn("reply 2"), turns[6])
			// greeting + user, then two more turns per round trip
			assert.Equal(t, []int{2, 4, 6}, up.conversationSizes())
		})
	}
}

func TestRelayedSession_EmptyReplyDoesNotBreakSession(t *testing.T) {
	for _, mode := range []string{"stream", "batch"} {
		t.Run(mode, func(t *testing.T) {
			up := &scriptedUpstream{replies: []string{"", "fine"}}
			ctrl := newRelayedSession(t, up, mode)

			require.Equal(t, session.OutcomeReplied, ctrl.Submit(context.Background(), "Hello"))
			require.Equal(t, session.OutcomeReplied, ctrl.Submit(context.Background(), "Still there?"))

			turns := ctrl.Turns()
			require.Len(t, turns, 5)
			assert.Equal(t, chat.AssistantTurn(""), turns[2])
			assert.Equal(t, chat.AssistantTurn("fine"), turns[4])
		})
	}
}

func TestRelayedSession_LongConversation(t *testing.T) {
	up := &scriptedUpstream{}
	ctrl := newRelayedSession(t, up, "stream")

	const roundTrips = 60
	for i := 0; i < roundTrips; i++ {
		require.Equal(t, session.OutcomeReplied, ctrl.Submit(context.Background(), fmt.Sprintf("question %d", i)), "round trip %d", i)
	}

	turns := ctrl.Turns()
	require.Len(t, turns, 1+2*roundTrips, "the client transcript is never evicted")
	assert.Equal(t, chat.AssistantTurn(fmt.Sprintf("reply %d", roundTrips-1)), turns[len(turns)-1])

	sizes := up.conversationSizes()
	require.Len(t, sizes, roundTrips)
	assert.Equal(t, MaxHistoryMessages, sizes[roundTrips-1], "the relay forwards only the recent window")
}

func TestRelayedSession_OversizedInputIsRejectedLocally(t *testing.T) {
	up := &scriptedUpstream{}
	ctrl := newRelayedSession(t, up, "stream")

	oversized := strings.Repeat("a", MaxMessageContentBytes+1)
	assert.Equal(t, session.OutcomeRejected, ctrl.Submit(context.Background(), oversized))
	assert.Equal(t, session.OutcomeReplied, ctrl.Submit(context.Background(), "Hello"))
	assert.Len(t, up.conversationSizes(), 1)
}

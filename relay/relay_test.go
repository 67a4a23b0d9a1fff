package relay_test

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ayushdevani01/real-time-video-chat-app/test_utils"
	"github.com/ayushdevani01/real-time-video-chat-app/types"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"
)

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dialClient(t *testing.T, urlStr string) *testClient {
	conn, _, err := websocket.DefaultDialer.Dial(urlStr, nil)
	require.Nil(t, err)

	var env types.Envelope
	require.Nil(t, conn.ReadJSON(&env))
	require.Equal(t, types.Ready, env.Event)
	var ready types.ReadyPayload
	require.Nil(t, json.Unmarshal(env.Data, &ready))
	require.NotEmpty(t, ready.ID)

	return &testClient{t: t, conn: conn, id: ready.ID}
}

func (c *testClient) join(room, username string) {
	c.send(types.JoinRoomEvent, types.JoinRoomPayload{Room: room, Username: username})
}

func (c *testClient) send(event types.Event, payload interface{}) {
	env, err := types.NewEnvelope(event, payload)
	require.Nil(c.t, err)
	require.Nil(c.t, c.conn.WriteJSON(env))
}

func (c *testClient) expect(event types.Event) *types.Envelope {
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env types.Envelope
	require.Nil(c.t, c.conn.ReadJSON(&env), "waiting for %v", event)
	require.Equal(c.t, event, env.Event)
	return &env
}

// expectSilence asserts that nothing arrives within d. The read timeout
// poisons the connection, so this must be the last use of the client.
func (c *testClient) expectSilence(d time.Duration) {
	c.conn.SetReadDeadline(time.Now().Add(d))
	var env types.Envelope
	err := c.conn.ReadJSON(&env)
	if err == nil {
		c.t.Fatalf("expected no event, got %v", env.Event)
	}
	require.True(c.t, os.IsTimeout(err), "expected read timeout, got: %v", err)
}

func (c *testClient) close() {
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.conn.Close()
}

func decodeUsers(t *testing.T, env *types.Envelope) []types.UserInfo {
	var users []types.UserInfo
	require.Nil(t, json.Unmarshal(env.Data, &users))
	return users
}

func decodeUser(t *testing.T, env *types.Envelope) types.UserInfo {
	var user types.UserInfo
	require.Nil(t, json.Unmarshal(env.Data, &user))
	return user
}

func decodeID(t *testing.T, env *types.Envelope) string {
	var id string
	require.Nil(t, json.Unmarshal(env.Data, &id))
	return id
}

func TestJoinAndMembershipFlow(t *testing.T) {
	require := require.New(t)

	server, err := test_utils.SetupRelay()
	require.Nil(err)
	defer server.Shutdown()

	a := dialClient(t, server.URL)
	defer a.close()
	a.join("r1", "alice")
	require.Empty(decodeUsers(t, a.expect(types.ExistingUsersEvent)))

	b := dialClient(t, server.URL)
	defer b.close()
	b.join("r1", "bob")
	existing := decodeUsers(t, b.expect(types.ExistingUsersEvent))
	require.Equal([]types.UserInfo{{ID: a.id, Username: "alice"}}, existing)

	joined := decodeUser(t, a.expect(types.UserJoinedEvent))
	require.Equal(types.UserInfo{ID: b.id, Username: "bob"}, joined)

	c := dialClient(t, server.URL)
	defer c.close()
	c.join("r1", "carol")
	existing = decodeUsers(t, c.expect(types.ExistingUsersEvent))
	require.Equal([]types.UserInfo{
		{ID: a.id, Username: "alice"},
		{ID: b.id, Username: "bob"},
	}, existing)
	a.expect(types.UserJoinedEvent)
	b.expect(types.UserJoinedEvent)
}

func TestChatDeliveryExcludesSender(t *testing.T) {
	require := require.New(t)

	server, err := test_utils.SetupRelay()
	require.Nil(err)
	defer server.Shutdown()

	a := dialClient(t, server.URL)
	defer a.close()
	a.join("r1", "alice")
	a.expect(types.ExistingUsersEvent)

	b := dialClient(t, server.URL)
	defer b.close()
	b.join("r1", "bob")
	b.expect(types.ExistingUsersEvent)
	a.expect(types.UserJoinedEvent)

	a.send(types.ChatEvent, types.ChatPayload{Room: "r1", Message: "hi", Username: "alice"})

	env := b.expect(types.ChatReceiveEvent)
	var msg types.ChatDelivery
	require.Nil(json.Unmarshal(env.Data, &msg))
	require.Equal("hi", msg.Message)
	require.Equal("alice", msg.Username)
	require.Equal(a.id, msg.ID)

	// The sender never hears its own message back.
	a.expectSilence(300 * time.Millisecond)
}

func TestDirectedSignalRouting(t *testing.T) {
	require := require.New(t)

	server, err := test_utils.SetupRelay()
	require.Nil(err)
	defer server.Shutdown()

	a := dialClient(t, server.URL)
	defer a.close()
	a.join("r1", "alice")
	a.expect(types.ExistingUsersEvent)

	b := dialClient(t, server.URL)
	defer b.close()
	b.join("r1", "bob")
	b.expect(types.ExistingUsersEvent)
	a.expect(types.UserJoinedEvent)

	// A connected client in a different room must never see r1 traffic.
	other := dialClient(t, server.URL)
	defer other.close()
	other.join("r2", "mallory")
	other.expect(types.ExistingUsersEvent)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}
	a.send(types.OfferEvent, types.OfferPayload{Offer: offer, To: b.id, Username: "alice"})

	env := b.expect(types.OfferEvent)
	var payload types.OfferPayload
	require.Nil(json.Unmarshal(env.Data, &payload))
	require.Equal(a.id, payload.From)
	require.Equal("alice", payload.Username)
	require.Equal(offer.SDP, payload.Offer.SDP)
	require.Empty(payload.To)

	// A stale or forged destination is delivered nowhere and surfaces no
	// error to the sender.
	a.send(types.OfferEvent, types.OfferPayload{Offer: offer, To: "no-such-connection", Username: "alice"})

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"}
	b.send(types.AnswerEvent, types.AnswerPayload{Answer: answer, To: a.id})
	env = a.expect(types.AnswerEvent)
	var answerPayload types.AnswerPayload
	require.Nil(json.Unmarshal(env.Data, &answerPayload))
	require.Equal(b.id, answerPayload.From)

	other.expectSilence(300 * time.Millisecond)
}

func TestDisconnectBroadcastsUserLeftOnce(t *testing.T) {
	require := require.New(t)

	server, err := test_utils.SetupRelay()
	require.Nil(err)
	defer server.Shutdown()

	a := dialClient(t, server.URL)
	defer a.close()
	a.join("r1", "alice")
	a.expect(types.ExistingUsersEvent)

	b := dialClient(t, server.URL)
	b.join("r1", "bob")
	b.expect(types.ExistingUsersEvent)
	a.expect(types.UserJoinedEvent)

	b.close()

	left := decodeID(t, a.expect(types.UserLeftEvent))
	require.Equal(b.id, left)
	a.expectSilence(300 * time.Millisecond)
}

func TestRejoinOtherRoomNotifiesOldRoom(t *testing.T) {
	require := require.New(t)

	server, err := test_utils.SetupRelay()
	require.Nil(err)
	defer server.Shutdown()

	a := dialClient(t, server.URL)
	defer a.close()
	a.join("r1", "alice")
	a.expect(types.ExistingUsersEvent)

	b := dialClient(t, server.URL)
	defer b.close()
	b.join("r1", "bob")
	b.expect(types.ExistingUsersEvent)
	a.expect(types.UserJoinedEvent)

	// The same connection joining a second room moves instead of
	// duplicating membership, and its old room sees a departure.
	b.join("r2", "bob")
	require.Empty(decodeUsers(t, b.expect(types.ExistingUsersEvent)))
	require.Equal(b.id, decodeID(t, a.expect(types.UserLeftEvent)))
}

func TestHealthEndpoint(t *testing.T) {
	require := require.New(t)

	server, err := test_utils.SetupRelay()
	require.Nil(err)
	defer server.Shutdown()

	// The websocket URL doubles as the HTTP address.
	httpURL := "http" + strings.TrimSuffix(strings.TrimPrefix(server.URL, "ws"), "/ws")
	resp, err := http.Get(httpURL + "/health")
	require.Nil(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)
}

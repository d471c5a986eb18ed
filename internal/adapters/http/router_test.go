package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedLyanov/VizorLite/internal/adapters/signal"
	"github.com/AhmedLyanov/VizorLite/internal/app"
	"github.com/AhmedLyanov/VizorLite/internal/config"
	"github.com/AhmedLyanov/VizorLite/internal/core"
	"github.com/AhmedLyanov/VizorLite/internal/domain"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Mode:        "release",
		ReadLimit:   32768,
		PingPeriod:  54 * time.Second,
		WriteWait:   5 * time.Second,
		SendBuffer:  32,
		Secret:      "test-secret",
		STUNServers: []string{"stun:stun.l.google.com:19302"},
	}

	registry := app.NewRegistry()
	directory := app.NewDirectory(registry)
	rooms := app.NewRoomService(directory.MemberCount)
	relay := app.NewRelay(registry, directory, rooms)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := SetupRouter(ctx, cfg, Deps{
		Auth:   app.NewTokenAuthenticator(),
		Rooms:  rooms,
		Signal: signal.NewController(relay, registry, cfg),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody(t *testing.T, resp *http.Response) map[string]json.RawMessage {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCreateAndFetchRoom(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/api/rooms", "application/json",
		strings.NewReader(`{"name":"standup","description":"daily","maxParticipants":4}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Room domain.Room `json:"room"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Len(t, string(created.Room.ID), 8)
	assert.Equal(t, domain.RoomName("standup"), created.Room.Name)
	assert.Equal(t, 4, created.Room.MaxParticipants)

	resp, err = http.Get(srv.URL + "/api/rooms/" + string(created.Room.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/rooms")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	var listed []domain.Room
	require.NoError(t, json.Unmarshal(body["rooms"], &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.Room.ID, listed[0].ID)
}

func TestICEServerList(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/ice")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	var servers []string
	require.NoError(t, json.Unmarshal(body["iceServers"], &servers))
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, servers)
}

func TestCreateRoomValidation(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPrivateRoomResolvesLikeMissing(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/api/rooms", "application/json",
		strings.NewReader(`{"name":"secret","isPublic":false}`))
	require.NoError(t, err)
	var created struct {
		Room domain.Room `json:"room"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/rooms/" + string(created.Room.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/rooms/NOPE")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

type wsClient struct {
	conn *websocket.Conn
	id   string
}

func dialSignal(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	welcome := readEnvelope(t, conn)
	require.Equal(t, core.KindWelcome, welcome.Kind)
	require.NotEmpty(t, welcome.MemberID)
	return &wsClient{conn: conn, id: welcome.MemberID}
}

// sync round-trips a self-addressed frame. The relay applies frames from
// one connection in order, so once the echo arrives every earlier frame
// has been handled.
func (c *wsClient) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, c.conn.WriteJSON(core.Envelope{
		Kind:   core.KindOffer,
		Target: c.id,
		SDP:    json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	}))
	env := readEnvelope(t, c.conn)
	require.Equal(t, core.KindOffer, env.Kind)
	require.Equal(t, c.id, env.Sender)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) core.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env core.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestSignalingOverWebsocket(t *testing.T) {
	srv := testServer(t)

	a := dialSignal(t, srv)
	b := dialSignal(t, srv)
	require.NotEqual(t, a.id, b.id)

	require.NoError(t, a.conn.WriteJSON(core.Envelope{Kind: core.KindJoinRoom, RoomID: "ROOM1234"}))
	a.sync(t)
	require.NoError(t, b.conn.WriteJSON(core.Envelope{Kind: core.KindJoinRoom, RoomID: "ROOM1234"}))

	// The member already in the room learns about the newcomer.
	joined := readEnvelope(t, a.conn)
	assert.Equal(t, core.KindMemberJoined, joined.Kind)
	assert.Equal(t, b.id, joined.MemberID)

	// Existing member initiates toward the newcomer.
	require.NoError(t, a.conn.WriteJSON(core.Envelope{
		Kind:   core.KindOffer,
		Target: b.id,
		SDP:    json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	}))
	offer := readEnvelope(t, b.conn)
	assert.Equal(t, core.KindOffer, offer.Kind)
	assert.Equal(t, a.id, offer.Sender)

	require.NoError(t, b.conn.WriteJSON(core.Envelope{
		Kind:   core.KindAnswer,
		Target: a.id,
		SDP:    json.RawMessage(`{"type":"answer","sdp":"v=0"}`),
	}))
	answer := readEnvelope(t, a.conn)
	assert.Equal(t, core.KindAnswer, answer.Kind)
	assert.Equal(t, b.id, answer.Sender)

	// Hanging up announces the departure to the room.
	require.NoError(t, b.conn.Close())
	left := readEnvelope(t, a.conn)
	assert.Equal(t, core.KindMemberLeft, left.Kind)
	assert.Equal(t, b.id, left.MemberID)
}

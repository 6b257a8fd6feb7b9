package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/rendezvous/internal/mailbox"
	"github.com/cwrk-planet/rendezvous/internal/matchmaker"
	"github.com/cwrk-planet/rendezvous/internal/transport/ws"
)

type apiClient struct {
	t   *testing.T
	url string
}

func newAPI(t *testing.T, autoRequeue bool, opts ...matchmaker.Option) *apiClient {
	t.Helper()
	boxes := mailbox.New(16, nil)
	engine := matchmaker.New(matchmaker.DefaultConfig(), boxes, opts...)
	srv := httptest.NewServer(NewRouter(NewHandler(engine, boxes, autoRequeue), nil, RouterConfig{}))
	t.Cleanup(srv.Close)
	return &apiClient{t: t, url: srv.URL}
}

func (c *apiClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.url+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *apiClient) join(name string) string {
	c.t.Helper()
	var resp JoinResponse
	require.Equal(c.t, http.StatusOK, c.do(http.MethodPost, "/api/join", JoinRequest{Name: name}, &resp))
	require.NotEmpty(c.t, resp.UserID)
	return resp.UserID
}

func (c *apiClient) poll(id string) PollResponse {
	c.t.Helper()
	var resp PollResponse
	require.Equal(c.t, http.StatusOK, c.do(http.MethodGet, "/api/poll/"+id, nil, &resp))
	return resp
}

type rawEvents struct {
	Events []struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	} `json:"events"`
}

func (c *apiClient) events(id string) rawEvents {
	c.t.Helper()
	var resp rawEvents
	require.Equal(c.t, http.StatusOK, c.do(http.MethodGet, "/api/events/"+id, nil, &resp))
	return resp
}

func TestAPI_JoinAndPoll(t *testing.T) {
	api := newAPI(t, false)

	alice := api.join("Alice")
	st := api.poll(alice)
	assert.Equal(t, pollWaiting, st.Status)
	assert.True(t, st.Queued)

	bob := api.join("Bob")
	sa := api.poll(alice)
	sb := api.poll(bob)
	assert.Equal(t, pollMatched, sa.Status)
	assert.Equal(t, "Bob", sa.PartnerName)
	assert.Equal(t, "initiator", sa.Role)
	assert.Equal(t, "Alice", sb.PartnerName)
	assert.Equal(t, "responder", sb.Role)
	assert.Equal(t, sa.SessionToken, sb.SessionToken)

	ev := api.events(bob)
	require.Len(t, ev.Events, 1)
	assert.Equal(t, ws.TypeMatchFound, ev.Events[0].Type)

	var errResp struct {
		Code string `json:"code"`
	}
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/poll/nobody", nil, &errResp))
	assert.Equal(t, "not_found", errResp.Code)
}

func TestAPI_JoinWithoutBody(t *testing.T) {
	api := newAPI(t, false)
	resp, err := http.Post(api.url+"/api/join", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Post(api.url+"/api/join", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestAPI_Relay(t *testing.T) {
	api := newAPI(t, false)
	alice := api.join("Alice")

	assert.Equal(t, http.StatusConflict,
		api.do(http.MethodPost, "/api/relay", RelayRequest{UserID: alice, Kind: "chat_message", Message: "hi"}, nil))

	bob := api.join("Bob")
	api.events(bob)

	assert.Equal(t, http.StatusAccepted,
		api.do(http.MethodPost, "/api/relay", RelayRequest{UserID: alice, Kind: "chat_message", Message: "hi"}, nil))
	assert.Equal(t, http.StatusAccepted,
		api.do(http.MethodPost, "/api/relay", RelayRequest{UserID: alice, Kind: "answer", Data: json.RawMessage(`{"sdp":"x"}`)}, nil))
	assert.Equal(t, http.StatusAccepted,
		api.do(http.MethodPost, "/api/relay", RelayRequest{UserID: alice, Kind: "chat_message", Message: "   "}, nil))
	assert.Equal(t, http.StatusBadRequest,
		api.do(http.MethodPost, "/api/relay", RelayRequest{UserID: alice, Kind: "telepathy"}, nil))
	assert.Equal(t, http.StatusNotFound,
		api.do(http.MethodPost, "/api/relay", RelayRequest{UserID: "nobody", Kind: "offer"}, nil))

	ev := api.events(bob)
	require.Len(t, ev.Events, 2)
	assert.Equal(t, ws.TypeChatMessage, ev.Events[0].Type)
	assert.JSONEq(t, `{"from":"partner","message":"hi"}`, string(ev.Events[0].Payload))
	assert.Equal(t, ws.TypeAnswer, ev.Events[1].Type)
	assert.JSONEq(t, `{"from":"partner","data":{"sdp":"x"}}`, string(ev.Events[1].Payload))
}

func TestAPI_LeaveAndRequeue(t *testing.T) {
	api := newAPI(t, false)
	alice := api.join("Alice")
	bob := api.join("Bob")

	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/leave", UserRequest{UserID: alice}, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/api/leave", UserRequest{UserID: alice}, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/events/"+alice, nil, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/leave", UserRequest{}, nil))

	st := api.poll(bob)
	assert.Equal(t, pollWaiting, st.Status)
	assert.False(t, st.Queued)

	ev := api.events(bob)
	require.Len(t, ev.Events, 2)
	assert.Equal(t, ws.TypePartnerDisconnected, ev.Events[1].Type)

	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/requeue", UserRequest{UserID: bob}, nil))
	assert.True(t, api.poll(bob).Queued)
}

func TestAPI_AutoRequeueOnPoll(t *testing.T) {
	api := newAPI(t, true)
	alice := api.join("Alice")
	bob := api.join("Bob")

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/leave", UserRequest{UserID: alice}, nil))

	st := api.poll(bob)
	assert.Equal(t, pollWaiting, st.Status)
	assert.True(t, st.Queued)

	api.join("Carol")
	assert.Equal(t, "Carol", api.poll(bob).PartnerName)
}

func TestAPI_PolicyViolationBans(t *testing.T) {
	policy := matchmaker.PolicyFunc(func(text string) (bool, string) {
		return strings.Contains(text, "badword"), "profanity"
	})
	api := newAPI(t, false, matchmaker.WithPolicy(policy))
	alice := api.join("Alice")
	bob := api.join("Bob")

	assert.Equal(t, http.StatusForbidden,
		api.do(http.MethodPost, "/api/relay", RelayRequest{UserID: alice, Kind: "chat_message", Message: "badword"}, nil))

	ev := api.events(bob)
	for _, e := range ev.Events {
		assert.NotEqual(t, ws.TypeChatMessage, e.Type)
	}
	assert.Equal(t, pollWaiting, api.poll(bob).Status)

	// the banned participant can still collect the reason once
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/poll/"+alice, nil, nil))
	gone := api.events(alice)
	require.NotEmpty(t, gone.Events)
	last := gone.Events[len(gone.Events)-1]
	assert.Equal(t, ws.TypeBanned, last.Type)
	assert.JSONEq(t, `{"reason":"profanity"}`, string(last.Payload))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/events/"+alice, nil, nil))

	var errResp struct {
		Code string `json:"code"`
	}
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/api/join", JoinRequest{Name: "again"}, &errResp))
	assert.Equal(t, "banned", errResp.Code)
}

func TestAPI_ReportAndBanMe(t *testing.T) {
	api := newAPI(t, false)
	alice := api.join("Alice")
	bob := api.join("Bob")

	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/report", UserRequest{UserID: alice, Reason: "rude"}, nil))
	assert.Equal(t, pollMatched, api.poll(bob).Status)

	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/ban-me", UserRequest{UserID: bob, Reason: "nsfw"}, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/poll/"+bob, nil, nil))
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/api/join", JoinRequest{}, nil))
}

func TestAPI_Healthz(t *testing.T) {
	api := newAPI(t, false)
	var resp StatusResponse
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", nil, &resp))
	assert.Equal(t, "ok", resp.Status)
}

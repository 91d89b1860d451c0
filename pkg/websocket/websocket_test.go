package websocketPkg

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"VisionAnalytica/internal/api/analysis"
	"VisionAnalytica/internal/entity"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/net/context"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// replayServer reads n frames, then answers them in reverse order.
func replayServer(t *testing.T, n int) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for i := 0; i < n; i++ {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
		for token := uint64(n); token >= 1; token-- {
			reply := analysis.StreamReply{
				Token: token,
				Data:  &entity.AnalysisResult{Object: "car", HelmetPresence: entity.HelmetPresenceUnknown, Provider: "Gemini"},
			}
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}

		_, _, _ = conn.ReadMessage()
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamClient_DropsStaleReplies(t *testing.T) {
	srv := replayServer(t, 2)
	defer srv.Close()

	client, err := Dial(context.Background(), Config{URL: wsURL(srv), Log: testLogger()})
	require.NoError(t, err)

	first, err := client.SendFrame([]byte("frame-1"))
	require.NoError(t, err)
	second, err := client.SendFrame([]byte("frame-2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)

	select {
	case reply := <-client.Replies():
		assert.Equal(t, uint64(2), reply.Token)
		require.NotNil(t, reply.Data)
		assert.Equal(t, "car", reply.Data.Object)
	case <-time.After(3 * time.Second):
		t.Fatal("no reply received")
	}

	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())

	for reply := range client.Replies() {
		t.Fatalf("unexpected reply after close: %+v", reply)
	}

	_, err = client.SendFrame([]byte("late"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStreamClient_ServerClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_ = conn.Close()
	}))
	defer srv.Close()

	client, err := Dial(context.Background(), Config{URL: wsURL(srv), Log: testLogger()})
	require.NoError(t, err)

	select {
	case _, ok := <-client.Replies():
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("replies channel not closed")
	}
	assert.False(t, client.IsConnected())
	require.NoError(t, client.Close())
}

func TestDial_Errors(t *testing.T) {
	_, err := Dial(context.Background(), Config{Log: testLogger()})
	assert.Error(t, err)

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err = Dial(context.Background(), Config{URL: wsURL(srv), Log: testLogger()})
	assert.ErrorContains(t, err, "failed to connect")
}

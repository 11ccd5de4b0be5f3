package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dkeye/TableRelay/internal/app"
	"github.com/dkeye/TableRelay/internal/app/moderation"
	"github.com/dkeye/TableRelay/internal/app/orch"
	"github.com/dkeye/TableRelay/internal/protocol"
)

func newServer(t *testing.T, s Settings) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(20),
		Policy:   app.SimplePolicy{},
		Resume:   app.NewResumeStore(time.Minute),
		Limiter:  moderation.NewRateLimiter(8, 10*time.Second),
		Chat:     moderation.ChatPipeline{Filter: moderation.NopFilter{}, MaxLen: 500},
	}
	ctx, cancel := context.WithCancel(context.Background())
	ctl := NewSignalWSController(o, s)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func write(t *testing.T, ws *websocket.Conn, m protocol.Message) {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, protocol.MustEncode(m)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, ws *websocket.Conn) protocol.Message {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func readType[T protocol.Message](t *testing.T, ws *websocket.Conn) T {
	t.Helper()
	m := read(t, ws)
	v, ok := m.(T)
	if !ok {
		t.Fatalf("expected %T, got %s", v, m.MsgType())
	}
	return v
}

func TestSocketCreateJoinAndIntent(t *testing.T) {
	srv := newServer(t, Settings{})
	a, b := dial(t, srv), dial(t, srv)
	helloA := readType[*protocol.Hello](t, a)
	helloB := readType[*protocol.Hello](t, b)
	if helloA.ClientID == "" || helloA.ClientID == helloB.ClientID {
		t.Fatalf("each socket needs its own client id: %q %q", helloA.ClientID, helloB.ClientID)
	}

	write(t, a, &protocol.CreateRoom{RoomID: "t", PIN: "ABC123"})
	readType[*protocol.CreateRoom](t, a)
	readType[*protocol.Join](t, a)
	readType[*protocol.ResumeToken](t, a)

	write(t, b, &protocol.Join{RoomID: "t", PIN: "nope"})
	readType[*protocol.Kick](t, b)

	write(t, b, &protocol.Join{RoomID: "t", PIN: "ABC123"})
	if j := readType[*protocol.Join](t, a); j.PlayerID != helloB.ClientID {
		t.Fatalf("unexpected join %+v", j)
	}
	readType[*protocol.Join](t, b)
	readType[*protocol.ResumeToken](t, b)

	write(t, b, &protocol.Intent{PlayerID: helloB.ClientID, Seq: protocol.U64(0), Intent: []byte(`{"bid":2}`)})
	for _, ws := range []*websocket.Conn{a, b} {
		in := readType[*protocol.Intent](t, ws)
		if *in.Seq != 1 || in.PlayerID != helloB.ClientID {
			t.Fatalf("unexpected intent %+v", in)
		}
	}
}

func TestSocketResumeAfterDrop(t *testing.T) {
	srv := newServer(t, Settings{})
	a, b := dial(t, srv), dial(t, srv)
	readType[*protocol.Hello](t, a)
	helloB := readType[*protocol.Hello](t, b)

	write(t, a, &protocol.CreateRoom{RoomID: "t"})
	readType[*protocol.CreateRoom](t, a)
	readType[*protocol.Join](t, a)
	readType[*protocol.ResumeToken](t, a)

	write(t, b, &protocol.Join{RoomID: "t"})
	readType[*protocol.Join](t, a)
	readType[*protocol.Join](t, b)
	token := readType[*protocol.ResumeToken](t, b).ResumeToken

	b.Close()
	if l := readType[*protocol.Leave](t, a); l.PlayerID != helloB.ClientID {
		t.Fatalf("unexpected leave %+v", l)
	}

	b2 := dial(t, srv)
	readType[*protocol.Hello](t, b2)
	write(t, b2, &protocol.Hello{ResumeToken: token})
	if h := readType[*protocol.Hello](t, b2); h.ClientID != helloB.ClientID {
		t.Fatalf("resume should restore %q, got %q", helloB.ClientID, h.ClientID)
	}
	if tok := readType[*protocol.ResumeToken](t, b2); tok.ResumeToken == token {
		t.Fatal("token must rotate on resume")
	}
	readType[*protocol.Join](t, a)
}

func TestSocketInboundGuardDropsFloods(t *testing.T) {
	srv := newServer(t, Settings{InboundRate: 0.001, InboundBurst: 2})
	a := dial(t, srv)
	hello := readType[*protocol.Hello](t, a)

	write(t, a, &protocol.CreateRoom{RoomID: "t"})
	for i := 0; i < 5; i++ {
		write(t, a, &protocol.Intent{PlayerID: hello.ClientID, Seq: protocol.U64(0), Intent: []byte(`0`)})
	}
	readType[*protocol.CreateRoom](t, a)
	readType[*protocol.Join](t, a)
	readType[*protocol.ResumeToken](t, a)
	if in := readType[*protocol.Intent](t, a); *in.Seq != 1 {
		t.Fatalf("unexpected seq %d", *in.Seq)
	}

	_ = a.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, data, err := a.ReadMessage(); err == nil {
		t.Fatalf("flooded frames should have been dropped, got %s", data)
	}
}

func TestSocketIgnoresGarbage(t *testing.T) {
	srv := newServer(t, Settings{})
	a := dial(t, srv)
	readType[*protocol.Hello](t, a)

	for _, f := range []string{"{", `{"type":"WHAT"}`, `{"type":"JOIN"}`} {
		if err := a.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatal(err)
		}
	}
	write(t, a, &protocol.CreateRoom{RoomID: "still-alive"})
	if c := readType[*protocol.CreateRoom](t, a); c.RoomID != "still-alive" {
		t.Fatalf("unexpected reply %+v", c)
	}
}

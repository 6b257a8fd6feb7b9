package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/cwrk-planet/rendezvous/internal/domain"
	"github.com/cwrk-planet/rendezvous/internal/matchmaker"
	"github.com/cwrk-planet/rendezvous/pkg/httputil"
	"github.com/cwrk-planet/rendezvous/pkg/logger"
)

const (
	writeWait    = 5 * time.Second
	maxFrameSize = 1 << 20
)

type Engine interface {
	Enqueue(ctx context.Context, req matchmaker.JoinRequest) (domain.ParticipantID, error)
	Next(ctx context.Context, id domain.ParticipantID, name string) error
	Requeue(ctx context.Context, id domain.ParticipantID) error
	Disconnect(ctx context.Context, id domain.ParticipantID) error
	Relay(ctx context.Context, from domain.ParticipantID, payload domain.Payload) error
	Report(ctx context.Context, id domain.ParticipantID, reason string) error
	SelfReport(ctx context.Context, id domain.ParticipantID, reason string) error
	IsBanned(origin string) bool
	Touch(id domain.ParticipantID) error
}

type Config struct {
	SendBuffer     int
	PingEvery      time.Duration
	AutoRequeue    bool
	AllowedOrigins []string
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	engine   Engine
	cfg      Config
	log      *slog.Logger
}

func NewServer(hub *Hub, engine Engine, cfg Config, log *slog.Logger) *Server {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.PingEvery <= 0 {
		cfg.PingEvery = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		hub:    hub,
		engine: engine,
		cfg:    cfg,
		log:    log.With("component", "ws"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 || lo.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	return lo.Contains(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// HandleWS serves GET /ws. Each socket is one participant; it enters the
// queue on start_chat and is torn down when the socket closes.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	origin := httputil.OriginKey(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "origin", origin, "err", err)
		return
	}

	if s.engine.IsBanned(origin) {
		s.log.Info("ws connection from banned origin refused", "origin", origin)
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(Message{Type: TypeBanned, Payload: ReasonPayload{Reason: "banned"}})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "banned"))
		_ = conn.Close()
		return
	}

	c := newWsConn(conn, domain.NewParticipantID(), origin, s.cfg.SendBuffer)
	s.hub.Add(c)
	s.log.Debug("ws connected", "participant", c.id, "origin", origin)

	ctx := logger.WithParticipant(context.WithoutCancel(r.Context()), string(c.id))
	go s.writeLoop(ctx, c)
	s.readLoop(ctx, c)

	s.hub.Remove(c)
	if err := s.engine.Disconnect(ctx, c.id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("ws disconnect failed", "participant", c.id, "err", err)
	}
	if err := c.Close(); err != nil {
		s.log.Debug("ws close failed", "participant", c.id, "err", err)
	}
	s.log.Debug("ws disconnected", "participant", c.id)
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingEvery))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingEvery))
		_ = s.engine.Touch(c.id)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("ws read failed", "participant", c.id, "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingEvery))

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.Send(errorMessage("invalid json"))
			continue
		}
		s.dispatch(ctx, c, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, c *wsConn, msg inbound) {
	switch msg.Type {
	case TypeStartChat:
		var p NamePayload
		_ = decode(msg.Payload, &p)
		s.join(ctx, c, p.Name)

	case TypeNextChat:
		var p NamePayload
		_ = decode(msg.Payload, &p)
		err := s.engine.Next(ctx, c.id, p.Name)
		if errors.Is(err, domain.ErrNotFound) {
			s.join(ctx, c, p.Name)
			return
		}
		s.reply(c, err)

	case TypeOffer, TypeAnswer, TypeICECandidate:
		kind := domain.PayloadKind(msg.Type)
		s.reply(c, s.engine.Relay(ctx, c.id, domain.SignalPayload(kind, msg.Payload)))

	case TypeChatMessage:
		var p ChatPayload
		if err := decode(msg.Payload, &p); err != nil {
			_ = c.Send(errorMessage("invalid chat payload"))
			return
		}
		s.reply(c, s.engine.Relay(ctx, c.id, domain.ChatPayload(p.Message)))

	case TypeReportUser:
		var p ReasonPayload
		_ = decode(msg.Payload, &p)
		s.reply(c, s.engine.Report(ctx, c.id, p.Reason))

	case TypeBanMe:
		var p ReasonPayload
		_ = decode(msg.Payload, &p)
		s.reply(c, s.engine.SelfReport(ctx, c.id, p.Reason))

	case TypeLeave:
		s.reply(c, s.engine.Disconnect(ctx, c.id))

	default:
		_ = c.Send(errorMessage("unknown message type"))
	}
}

func (s *Server) join(ctx context.Context, c *wsConn, name string) {
	_, err := s.engine.Enqueue(ctx, matchmaker.JoinRequest{
		ID:          c.id,
		DisplayName: name,
		Origin:      c.origin,
		Transport:   domain.TransportPush,
	})
	if errors.Is(err, domain.ErrBanned) {
		_ = c.Send(Message{Type: TypeBanned, Payload: ReasonPayload{Reason: "banned"}})
		return
	}
	s.reply(c, err)
}

// reply reports client-visible failures. Relays outside a pairing and
// messages from unregistered sockets are dropped quietly.
func (s *Server) reply(c *wsConn, err error) {
	switch {
	case err == nil,
		errors.Is(err, domain.ErrNotPaired),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrPolicyViolation),
		errors.Is(err, matchmaker.ErrEmptyMessage):
		if err != nil {
			s.log.Debug("ws message dropped", "participant", c.id, "err", err)
		}
	case errors.Is(err, domain.ErrInvalidPayload):
		_ = c.Send(errorMessage(err.Error()))
	default:
		s.log.Error("ws operation failed", "participant", c.id, "err", err)
		_ = c.Send(errorMessage("internal error"))
	}
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.cfg.PingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				s.log.Debug("ws write failed", "participant", c.id, "err", err)
				_ = c.Close()
				return
			}
			switch msg.Type {
			case TypeBanned:
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "banned"),
					time.Now().Add(writeWait))
				_ = c.Close()
				return
			case TypePartnerDisconnected:
				if s.cfg.AutoRequeue {
					if err := s.engine.Requeue(ctx, c.id); err != nil && !errors.Is(err, domain.ErrNotFound) {
						s.log.Warn("ws auto requeue failed", "participant", c.id, "err", err)
					}
				}
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

type wsConn struct {
	conn   *websocket.Conn
	id     domain.ParticipantID
	origin string

	send      chan Message
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, id domain.ParticipantID, origin string, buffer int) *wsConn {
	return &wsConn{
		conn:   c,
		id:     id,
		origin: origin,
		send:   make(chan Message, buffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) ID() domain.ParticipantID { return c.id }

func (c *wsConn) Send(msg Message) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"home-services/realtime-service/internal/config"
	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/services"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// Gateway is the websocket entrypoint. It authenticates the upgrade request,
// then runs one writer, one heartbeat and one read loop per connection.
type Gateway struct {
	auth     *services.SessionAuthenticator
	registry *Registry
	router   *Router
	metrics  *Metrics

	originPatterns   []string
	sendQueueSize    int
	maxFrameBytes    int64
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
	rateEvents       int
	rateWindow       time.Duration

	mu      sync.Mutex
	closed  bool
	closing chan struct{}
	conns   sync.WaitGroup
}

func NewGateway(cfg config.RealtimeConfig, auth *services.SessionAuthenticator, registry *Registry, router *Router, metrics *Metrics) *Gateway {
	g := &Gateway{
		auth:             auth,
		registry:         registry,
		router:           router,
		metrics:          metrics,
		originPatterns:   cfg.AllowedOrigins,
		sendQueueSize:    cfg.SendQueueSize,
		maxFrameBytes:    cfg.MaxFrameBytes,
		writeTimeout:     orDefault(cfg.WriteTimeout, defaultWriteTimeout),
		handshakeTimeout: orDefault(cfg.HandshakeTimeout, defaultHandshakeTimeout),
		heartbeatEvery:   orDefault(cfg.HeartbeatInterval, heartbeatInterval),
		heartbeatTimeout: orDefault(cfg.HeartbeatTimeout, heartbeatTimeout),
		rateEvents:       cfg.RateEvents,
		rateWindow:       cfg.RateWindow,
		closing:          make(chan struct{}),
	}
	if g.sendQueueSize < minSendQueueSize {
		g.sendQueueSize = minSendQueueSize
	}
	if g.maxFrameBytes <= 0 {
		g.maxFrameBytes = defaultMaxFrameBytes
	}
	return g
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS authenticates before upgrading: a request without a valid
// credential never reaches the registry or any event handler.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	g.conns.Add(1)
	g.mu.Unlock()
	defer g.conns.Done()

	hsCtx, hsCancel := context.WithTimeout(r.Context(), g.handshakeTimeout)
	identity, err := g.auth.AuthenticateRequest(hsCtx, r)
	hsCancel()
	if err != nil {
		status := http.StatusUnauthorized
		result := "unauthorized"
		if !errors.Is(err, models.ErrUnauthenticated) {
			status = http.StatusServiceUnavailable
			result = "verifier_unavailable"
		}
		g.metrics.handshake(result)
		log.Info().Err(err).Str("remote", r.RemoteAddr).Msg("[WS] handshake rejected")
		http.Error(w, http.StatusText(status), status)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{SubprotocolV1},
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.metrics.handshake("accept_failed")
		log.Warn().Err(err).Str("user_id", identity.UserID).Msg("[WS] accept failed")
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(g.maxFrameBytes)
	g.metrics.handshake("accepted")

	g.serve(r.Context(), conn, identity)
}

func (g *Gateway) serve(parent context.Context, conn *websocket.Conn, identity models.Identity) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	client := NewClient(identity, g.sendQueueSize)
	if first := g.registry.Register(client); first {
		g.registry.Broadcast(ctx, models.EventUserStatusChanged, models.UserStatusPayload{UserID: identity.UserID, Status: statusOnline})
	}
	g.metrics.connected()

	logger := log.With().Str("connection_id", client.ID()).Str("user_id", identity.UserID).Logger()
	logger.Info().Str("role", string(identity.Role)).Msg("[WS] connected")

	var closeOnce sync.Once
	// shutdown leaves every room before the client goroutines stop.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			last := g.registry.Unregister(client)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()

			g.metrics.disconnected()
			if last {
				g.registry.Broadcast(context.WithoutCancel(parent), models.EventUserStatusChanged,
					models.UserStatusPayload{UserID: identity.UserID, Status: statusOffline})
			}
			logger.Info().Str("reason", reason).Msg("[WS] disconnected")
		})
	}

	go func() {
		select {
		case <-g.closing:
			shutdown(websocket.StatusGoingAway, "server shutting down")
		case <-ctx.Done():
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case frame := <-client.Send:
				if err := writeFrame(ctx, conn, frame, g.writeTimeout); err != nil {
					logger.Debug().Err(err).Msg("[WS] write failed")
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					if failures >= maxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	limiter := newEventLimiter(g.rateEvents, g.rateWindow)

	// Idle connections stay open; the heartbeat is the only liveness cut-off.
	for {
		data, err := readFrame(ctx, conn)
		if err != nil {
			shutdown(closeStatusFor(err), "read: "+readErrReason(err))
			break
		}

		if !limiter.Allow() {
			g.sendError(client, "", errRateLimited)
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || strings.TrimSpace(env.Event) == "" {
			g.sendError(client, "", errBadEnvelope)
			continue
		}

		g.handle(ctx, client, env)
	}

	<-writerDone
	select {
	case <-heartbeatDone:
	case <-time.After(closeGrace):
	}
}

// Shutdown refuses new upgrades, closes every live connection and waits for
// their loops to return. http.Server.Shutdown does not track hijacked
// websocket connections.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		close(g.closing)
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const kindDependency = "dependency_error"

var (
	errRateLimited = errors.New("too many events")
	errBadEnvelope = errors.New("invalid frame: expected {\"event\": ..., \"data\": ...}")
)

// handle runs one event to completion. Errors and panics are turned into an
// error event for the sender; the connection stays open.
func (g *Gateway) handle(ctx context.Context, c *Client, env Envelope) {
	label := env.Event
	if !g.router.Handles(label) {
		label = "unknown"
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("event", env.Event).Str("connection_id", c.ID()).Msg("[WS] handler panic")
			g.metrics.event(label, "panic")
			g.sendError(c, env.Event, models.ErrDependency)
		}
	}()

	if err := g.router.Dispatch(ctx, c, env); err != nil {
		kind := models.ErrorKind(err)
		g.metrics.event(label, kind)
		if kind == kindDependency {
			log.Error().Err(err).Str("event", env.Event).Str("user_id", c.Identity.UserID).Msg("[WS] event failed")
		}
		g.sendError(c, env.Event, err)
		return
	}
	g.metrics.event(label, "ok")
}

func (g *Gateway) sendError(c *Client, event string, err error) {
	code := models.ErrorKind(err)
	msg := err.Error()
	switch {
	case errors.Is(err, errRateLimited):
		code = "rate_limited"
	case errors.Is(err, errBadEnvelope):
		code = "bad_frame"
	case code == kindDependency:
		msg = "service temporarily unavailable"
	}
	g.registry.SendTo(c, models.EventError, models.ErrorPayload{Message: msg, Code: code, Event: event})
}

func readFrame(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	_, data, err := conn.Read(ctx)
	return data, err
}

func writeFrame(parent context.Context, conn *websocket.Conn, frame []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

func closeStatusFor(err error) websocket.StatusCode {
	switch {
	case websocket.CloseStatus(err) != -1:
		return websocket.StatusNormalClosure
	case errors.Is(err, context.DeadlineExceeded):
		return websocket.StatusGoingAway
	case errors.Is(err, context.Canceled):
		return websocket.StatusNormalClosure
	default:
		return websocket.StatusAbnormalClosure
	}
}

func readErrReason(err error) string {
	switch {
	case websocket.CloseStatus(err) != -1:
		return "peer closed"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	case errors.Is(err, context.Canceled):
		return "context done"
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF):
		return "conn closed"
	default:
		return err.Error()
	}
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/auth"
	"github.com/vovakirdan/huddle/internal/config"
	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/proto"
)

var errClientClosed = errors.New("client closed by server")

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	router       *core.Router
	auth         *auth.Service
	requireToken bool
	readLimit    int64
	perMinute    int
	buffer       int
	log          *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(router *core.Router, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		router:       router,
		auth:         authService,
		requireToken: cfg.JWTRequired,
		readLimit:    cfg.MaxMessageBytes,
		perMinute:    cfg.MessagesPerMinute,
		buffer:       cfg.ClientBuffer,
		log:          logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := core.NewClient(uuid.NewString(), h.buffer)
	h.router.RegisterClient(ctx, client)
	defer h.router.UnregisterClient(client)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if errors.Is(err, errClientClosed) {
		status = websocket.StatusGoingAway
		reason = "server shutting down"
		err = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.perMinute)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			if err := writeError(ctx, conn, inbound.ID, &proto.Error{Code: "rate_limited", Msg: "too many messages"}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("failed to map inbound")
			protoErr = &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed payload"}
		}
		if protoErr == nil && cmd.Kind == core.CommandJoin {
			protoErr = h.authenticateJoin(inbound, cmd)
		}
		if protoErr != nil {
			if err := writeError(ctx, conn, inbound.ID, protoErr); err != nil {
				return err
			}
			continue
		}
		if !client.Submit(ctx, cmd) {
			return ctx.Err()
		}
	}
}

// authenticateJoin checks the join token when tokens are required and
// binds the command to the token's user.
func (h *WSHandler) authenticateJoin(inbound proto.Inbound, cmd *core.Command) *proto.Error {
	if !h.requireToken {
		return nil
	}
	var join proto.JoinData
	_ = json.Unmarshal(inbound.Data, &join)
	if join.Token == "" || h.auth == nil {
		return &proto.Error{Code: "unauthorized", Msg: "token is required"}
	}
	claims, err := h.auth.ValidateToken(join.Token)
	if err != nil {
		h.log.Debug().Err(err).Msg("invalid join token")
		return &proto.Error{Code: "unauthorized", Msg: "invalid token"}
	}
	if cmd.User != "" && cmd.User != claims.Username {
		return &proto.Error{Code: "unauthorized", Msg: "token does not match user"}
	}
	cmd.User = claims.Username
	return nil
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if event == nil {
				continue
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			return errClientClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, id string, perr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, ID: id, Error: perr})
}

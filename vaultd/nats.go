package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSServer serves vault operations over NATS request/reply. The host UI
// sends a Request to "<prefix>.<op>" and receives a Response on its reply
// subject; fire-and-forget signals like "<prefix>.activity" need no reply.
type NATSServer struct {
	conn    *nats.Conn
	config  NATSConfig
	handler *Handler
	subs    []*nats.Subscription
}

// NewNATSServer connects to NATS and prepares the server.
func NewNATSServer(cfg NATSConfig, handler *Handler) (*NATSServer, error) {
	opts := []nats.Option{
		nats.Name("walletvault-daemon"),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWait) * time.Millisecond),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	}

	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err == nil {
			opts = append(opts, nats.UserCredentials(cfg.CredentialsFile))
		}
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSServer{
		conn:    conn,
		config:  cfg,
		handler: handler,
	}, nil
}

// Start subscribes to the operation subject tree.
func (s *NATSServer) Start(ctx context.Context) error {
	subject := s.config.SubjectPrefix + ".>"

	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		go s.serve(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", subject, err)
	}

	s.subs = append(s.subs, sub)
	log.Info().Str("subject", subject).Msg("Serving vault operations")
	return nil
}

func (s *NATSServer) serve(ctx context.Context, msg *nats.Msg) {
	op := strings.TrimPrefix(msg.Subject, s.config.SubjectPrefix+".")

	resp := s.handler.Dispatch(ctx, op, msg.Data)

	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Str("op", op).Msg("Failed to encode response")
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("Failed to send response")
	}
}

// Close drains subscriptions and closes the connection.
func (s *NATSServer) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.conn.Close()
}

// IsConnected reports whether the NATS connection is up.
func (s *NATSServer) IsConnected() bool {
	return s.conn.IsConnected()
}

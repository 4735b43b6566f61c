package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/store"
)

// Applier applies a group change to local connections.
type Applier interface {
	ApplyGroupChange(change core.GroupChange)
}

// Bus fans group changes out to every server instance over a Redis
// pub/sub channel. Changes are applied locally first, so local clients
// are updated even when Redis is unreachable.
type Bus struct {
	client  *redis.Client
	channel string
	origin  string
	local   Applier
	log     *zerolog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

type envelope struct {
	Origin string       `json:"origin"`
	Kind   string       `json:"kind"`
	User   string       `json:"user,omitempty"`
	Group  groupPayload `json:"group"`
}

type groupPayload struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	CreatorID   string   `json:"creator_id"`
	Members     []string `json:"members"`
	LastMessage string   `json:"last_message,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	UpdatedAt   int64    `json:"updated_at"`
}

// NewBus creates a bus publishing on channel.
func NewBus(client *redis.Client, channel string, local Applier, logger *zerolog.Logger) *Bus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Bus{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		local:   local,
		log:     logger,

		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// NotifyGroupChange applies change locally and publishes it to peers.
func (b *Bus) NotifyGroupChange(ctx context.Context, change core.GroupChange) error {
	b.local.ApplyGroupChange(change)

	payload, err := encode(b.origin, change)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish group change: %w", err)
	}
	return nil
}

// Run applies changes published by other instances until ctx is done.
// Subscription failures are logged and retried with backoff; local
// delivery keeps working meanwhile.
func (b *Bus) Run(ctx context.Context) error {
	backoff := b.minBackoff
	for {
		subscribed, err := b.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			backoff = b.minBackoff
		}
		b.log.Warn().Err(err).Str("channel", b.channel).Dur("retry_in", backoff).Msg("group change bus unavailable")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff = min(backoff*2, b.maxBackoff)
	}
}

// listen holds one subscription until it fails or ctx is done. subscribed
// reports whether the subscription was confirmed before the failure.
func (b *Bus) listen(ctx context.Context) (subscribed bool, err error) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.Info().Str("channel", b.channel).Msg("group change bus subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case msg, ok := <-ch:
			if !ok {
				return true, errors.New("group change subscription closed")
			}
			origin, change, err := decode([]byte(msg.Payload))
			if err != nil {
				b.log.Warn().Err(err).Msg("drop malformed group change")
				continue
			}
			if origin == b.origin {
				continue
			}
			b.local.ApplyGroupChange(change)
		}
	}
}

func encode(origin string, change core.GroupChange) ([]byte, error) {
	if change.Group == nil {
		return nil, errors.New("group change without group")
	}
	g := change.Group
	return json.Marshal(envelope{
		Origin: origin,
		Kind:   change.Kind.String(),
		User:   change.User,
		Group: groupPayload{
			ID:          g.ID,
			Name:        g.Name,
			CreatorID:   g.CreatorID,
			Members:     g.Members,
			LastMessage: g.LastMessage,
			CreatedAt:   g.CreatedAt.UnixNano(),
			UpdatedAt:   g.UpdatedAt.UnixNano(),
		},
	})
}

func decode(data []byte) (string, core.GroupChange, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", core.GroupChange{}, fmt.Errorf("decode group change: %w", err)
	}
	kind, ok := core.ParseGroupChangeKind(env.Kind)
	if !ok {
		return "", core.GroupChange{}, fmt.Errorf("unknown group change kind %q", env.Kind)
	}
	if env.Group.ID == "" {
		return "", core.GroupChange{}, errors.New("group change without group id")
	}
	return env.Origin, core.GroupChange{
		Kind: kind,
		User: env.User,
		Group: &store.Group{
			ID:          env.Group.ID,
			Name:        env.Group.Name,
			CreatorID:   env.Group.CreatorID,
			Members:     env.Group.Members,
			LastMessage: env.Group.LastMessage,
			CreatedAt:   time.Unix(0, env.Group.CreatedAt).UTC(),
			UpdatedAt:   time.Unix(0, env.Group.UpdatedAt).UTC(),
		},
	}, nil
}

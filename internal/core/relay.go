package core

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/store"
)

// Relay persists chat messages and keeps group summaries current.
type Relay struct {
	store      RoomStore
	globalRoom string
	maxText    int
	now        func() time.Time
	log        *zerolog.Logger
	metrics    *Metrics
}

func NewRelay(st RoomStore, globalRoom string, maxText int, logger *zerolog.Logger, metrics *Metrics) *Relay {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Relay{
		store:      st,
		globalRoom: globalRoom,
		maxText:    maxText,
		now:        time.Now,
		log:        logger,
		metrics:    metrics,
	}
}

// Deliver appends a message to roomID. Broadcasting is left to the caller,
// which must only do so when Deliver succeeds. A failed summary update is
// logged and does not fail the delivery.
func (r *Relay) Deliver(ctx context.Context, roomID, senderID, text string) (*store.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, coreError(ErrCodeValidation, "message text is required")
	}
	if r.maxText > 0 && utf8.RuneCountInString(text) > r.maxText {
		return nil, coreError(ErrCodeValidation, "message text is too long")
	}

	msg, err := r.store.AppendMessage(ctx, &store.Message{
		RoomID:    roomID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: r.now().UTC(),
	})
	if err != nil {
		return nil, &PersistenceError{Op: "append message", Err: err}
	}
	r.metrics.observePersisted()

	if roomID != r.globalRoom {
		if err := r.store.UpdateGroupSummary(ctx, roomID, text, msg.CreatedAt); err != nil {
			r.log.Warn().Err(err).Str("room", roomID).Int64("message_id", msg.ID).Msg("update group summary failed")
		}
	}
	return msg, nil
}

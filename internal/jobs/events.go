package jobs

import (
	"context"

	"github.com/rs/zerolog"

	"classroll/internal/attendance"
	"classroll/internal/queue"
)

// ConsumeEvents reads attendance events from q and hands each to obs until
// ctx ends or the queue closes.
func ConsumeEvents(ctx context.Context, q queue.Queue, obs attendance.Observer, log zerolog.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		evt, err := attendance.DecodeEvent(msg)
		if err != nil {
			log.Warn().Err(err).Str("id", msg.ID).Str("type", msg.Type).Msg("drop undecodable event")
			continue
		}
		log.Debug().Str("type", string(evt.Type)).Str("student", evt.StudentID).Stringer("date", evt.Date).Msg("event")
		obs.Observe(ctx, evt)
	}
	return nil
}

package desk

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
)

const deskAggregateType = "desk"

// emit пишет событие в timeline и outbox. Ошибки журнала логируются и не
// прерывают операцию: состояние сессии уже изменено.
func (s *Service) emit(view View, eventType, reason string, metadata map[string]any) {
	event := kafka.NewDeskEvent(eventType, view.ID, len(view.Lines), view.TotalPriceMinor, metadata)
	fields := log.Fields{
		"desk_id": view.ID,
		"event":   eventType,
	}

	if s.timeline != nil {
		err := s.timeline.Append(domain.TimelineEvent{
			OrderID:  view.ID,
			Type:     eventType,
			Reason:   reason,
			Occurred: event.Timestamp,
		})
		if err != nil {
			s.logger.WithError(err).WithFields(fields).Warn("append timeline event failed")
		}
	}

	if s.outbox == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Error("marshal event failed")
		return
	}
	_, err = s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: deskAggregateType,
		AggregateID:   view.ID,
		EventType:     eventType,
		Payload:       data,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Error("enqueue event failed")
	}
}

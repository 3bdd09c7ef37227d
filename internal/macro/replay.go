package macro

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/command"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// Replay воспроизводит макрос на order через invoker: каждая команда
// клонируется, привязывается к order и ставится в очередь, затем очередь
// выполняется одним пакетом. Сам макрос не меняется.
//
// Ожидается, что order и invoker свежие; Replay не трогает их историю
// кроме выполнения очереди.
func Replay(m Macro, order *domain.Order, invoker *command.Invoker) error {
	if order == nil {
		return domain.ErrOrderRequired
	}
	if invoker == nil {
		return fmt.Errorf("%w: invoker is required", domain.ErrInvalidCommand)
	}

	clones := make([]command.Command, 0, len(m.commands))
	for idx, cmd := range m.commands {
		cloned, err := command.Clone(cmd)
		if err != nil {
			return fmt.Errorf("replay macro %d command %d: %w", m.ID, idx, err)
		}
		if err := command.Rebind(cloned, order); err != nil {
			return fmt.Errorf("replay macro %d command %d: %w", m.ID, idx, err)
		}
		clones = append(clones, cloned)
	}

	for _, cloned := range clones {
		if err := invoker.AddCommand(cloned); err != nil {
			invoker.ClearCommand()
			return err
		}
	}
	if err := invoker.ExecuteCommands(); err != nil {
		invoker.ClearCommand()
		return fmt.Errorf("replay macro %d: %w", m.ID, err)
	}
	return nil
}

// ReplayFresh создаёт новый заказ и новый invoker и воспроизводит на них макрос.
func ReplayFresh(m Macro, logger *log.Entry, dm *metrics.DeskMetrics) (*domain.Order, *command.Invoker, error) {
	order := domain.NewOrder()
	if logger != nil {
		logger = logger.WithField("order_id", order.ID())
	}
	invoker := command.NewInvoker(logger, dm)

	err := Replay(m, order, invoker)
	if dm != nil {
		dm.RecordMacroReplay(err == nil)
	}
	if err != nil {
		return nil, nil, err
	}
	return order, invoker, nil
}

package command

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// Invoker хранит три контейнера команд: очередь ожидающих (pending),
// стек выполненных (executed, последняя в конце) и буфер повтора (redo).
//
// Invoker не потокобезопасен: владелец сериализует вызовы сам.
type Invoker struct {
	pending  []Command
	executed []Command
	redo     []Command

	logger  *log.Entry
	metrics *metrics.DeskMetrics
}

// NewInvoker создаёт invoker. logger и m могут быть nil.
func NewInvoker(logger *log.Entry, m *metrics.DeskMetrics) *Invoker {
	if logger == nil {
		logger = log.New().WithField("component", "invoker")
	}
	return &Invoker{
		logger:  logger,
		metrics: m,
	}
}

// AddCommand ставит команду в очередь без изменения доменного состояния.
func (i *Invoker) AddCommand(cmd Command) error {
	if cmd == nil {
		return domain.ErrInvalidCommand
	}
	i.pending = append(i.pending, cmd)
	return nil
}

// ExecuteCommands выполняет очередь в порядке FIFO и очищает её.
// Пакет атомарен: если команда падает, уже выполненные в этом пакете
// команды отменяются и убираются из истории, очередь остаётся нетронутой.
func (i *Invoker) ExecuteCommands() error {
	base := len(i.executed)
	for idx, cmd := range i.pending {
		if err := i.execute(cmd); err != nil {
			i.rollbackTo(base)
			i.logger.WithError(err).WithFields(log.Fields{
				"position": idx,
				"pending":  len(i.pending),
			}).Warn("batch execution failed, rolled back")
			return err
		}
	}
	if len(i.pending) > 0 {
		i.redo = nil
	}
	i.ClearCommand()
	return nil
}

func (i *Invoker) rollbackTo(base int) {
	for len(i.executed) > base {
		cmd := i.executed[len(i.executed)-1]
		i.executed = i.executed[:len(i.executed)-1]
		if err := cmd.Undo(); err != nil {
			i.logger.WithError(err).WithField("kind", KindOf(cmd)).Error("rollback undo failed")
		}
	}
}

// ExecuteCommand сразу применяет команду и кладёт её в историю.
// Новое выполнение очищает буфер повтора: повтор устаревшей команды поверх
// изменённого состояния не допускается.
func (i *Invoker) ExecuteCommand(cmd Command) error {
	if err := i.execute(cmd); err != nil {
		return err
	}
	i.redo = nil
	return nil
}

func (i *Invoker) execute(cmd Command) error {
	if cmd == nil {
		return domain.ErrInvalidCommand
	}
	kind := KindOf(cmd)
	if err := cmd.Execute(); err != nil {
		if i.metrics != nil {
			i.metrics.RecordCommandFailed(string(kind), "execute")
		}
		i.logger.WithError(err).WithField("kind", kind).Debug("command rejected")
		return err
	}
	i.executed = append(i.executed, cmd)
	if i.metrics != nil {
		i.metrics.RecordCommandExecuted(string(kind))
	}
	i.logger.WithFields(log.Fields{
		"kind":     kind,
		"executed": len(i.executed),
	}).Debug("command executed")
	return nil
}

// Undo снимает последнюю команду с истории, отменяет её и кладёт в буфер повтора.
func (i *Invoker) Undo() error {
	if len(i.executed) == 0 {
		if i.metrics != nil {
			i.metrics.RecordUndoEmpty()
		}
		return domain.ErrEmptyHistory
	}

	cmd := i.executed[len(i.executed)-1]
	kind := KindOf(cmd)
	if err := cmd.Undo(); err != nil {
		if i.metrics != nil {
			i.metrics.RecordCommandFailed(string(kind), "undo")
		}
		i.logger.WithError(err).WithField("kind", kind).Warn("undo failed, command kept in history")
		return err
	}
	i.executed = i.executed[:len(i.executed)-1]
	i.redo = append(i.redo, cmd)

	if i.metrics != nil {
		i.metrics.RecordCommandUndone(string(kind))
	}
	i.logger.WithFields(log.Fields{
		"kind": kind,
		"redo": len(i.redo),
	}).Debug("command undone")
	return nil
}

// Redo повторно выполняет последнюю отменённую команду. На пустом буфере ничего не делает.
func (i *Invoker) Redo() error {
	if len(i.redo) == 0 {
		return nil
	}

	cmd := i.redo[len(i.redo)-1]
	kind := KindOf(cmd)
	if err := i.execute(cmd); err != nil {
		if i.metrics != nil {
			i.metrics.RecordCommandFailed(string(kind), "redo")
		}
		return err
	}
	i.redo = i.redo[:len(i.redo)-1]

	if i.metrics != nil {
		i.metrics.RecordCommandRedone(string(kind))
	}
	return nil
}

// ClearCommand очищает только очередь ожидающих команд.
func (i *Invoker) ClearCommand() {
	i.pending = nil
}

// GetCommands возвращает копию очереди ожидающих команд.
func (i *Invoker) GetCommands() []Command {
	return copyCommands(i.pending)
}

// History возвращает копию стека выполненных команд, от старой к новой.
func (i *Invoker) History() []Command {
	return copyCommands(i.executed)
}

// ResetHistory очищает историю и буфер повтора, не трогая доменное состояние.
func (i *Invoker) ResetHistory() {
	i.executed = nil
	i.redo = nil
}

// CanUndo сообщает, есть ли что отменять.
func (i *Invoker) CanUndo() bool { return len(i.executed) > 0 }

// CanRedo сообщает, есть ли что повторять.
func (i *Invoker) CanRedo() bool { return len(i.redo) > 0 }

// UndoCount возвращает размер истории.
func (i *Invoker) UndoCount() int { return len(i.executed) }

// RedoCount возвращает размер буфера повтора.
func (i *Invoker) RedoCount() int { return len(i.redo) }

// PendingCount возвращает размер очереди.
func (i *Invoker) PendingCount() int { return len(i.pending) }

func copyCommands(src []Command) []Command {
	result := make([]Command, len(src))
	copy(result, src)
	return result
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyHistory возвращается при Undo без выполненных команд.
	ErrEmptyHistory = errors.New("command history is empty")
	// ErrMacroNotFound возвращается, если макрос с таким идентификатором не найден.
	ErrMacroNotFound = errors.New("macro not found")
	// ErrMacroEmpty: попытка сохранить макрос без команд.
	ErrMacroEmpty = errors.New("macro must contain at least one command")
	// ErrIndexOutOfRange: некорректный индекс снимка в caretaker.
	ErrIndexOutOfRange = errors.New("memento index out of range")
	// ErrNullMemento: восстановление из отсутствующего снимка.
	ErrNullMemento = errors.New("memento is required")
	// ErrInvalidCommand: предусловия команды не выполнены, состояние не изменено.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrUnsupportedCommand: команда не входит в закрытый набор вариантов.
	ErrUnsupportedCommand = errors.New("unsupported command type")
	// ErrDeskNotFound возвращается, если сессия редактирования заказа не найдена.
	ErrDeskNotFound = errors.New("desk not found")
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Детализация ErrInvalidCommand: errors.Is срабатывает и на конкретную ошибку, и на общую.
var (
	ErrOrderRequired      = fmt.Errorf("%w: order is required", ErrInvalidCommand)
	ErrProductRequired    = fmt.Errorf("%w: product is required", ErrInvalidCommand)
	ErrQuantityInvalid    = fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidCommand)
	ErrStockDeltaInvalid  = fmt.Errorf("%w: stock delta must be non-zero", ErrInvalidCommand)
	ErrInsufficientStock  = fmt.Errorf("%w: insufficient stock", ErrInvalidCommand)
	ErrCommandNotExecuted = fmt.Errorf("%w: command has not been executed", ErrInvalidCommand)
	ErrCommandExecuted    = fmt.Errorf("%w: command is already executed", ErrInvalidCommand)
	ErrLineMismatch       = fmt.Errorf("%w: order line no longer matches the command", ErrInvalidCommand)
)

// IsInvalidCommand проверяет, относится ли ошибка к невалидной команде.
func IsInvalidCommand(err error) bool {
	return errors.Is(err, ErrInvalidCommand)
}

// IsNotFound проверяет, является ли ошибка ошибкой поиска.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMacroNotFound) ||
		errors.Is(err, ErrDeskNotFound) ||
		errors.Is(err, ErrProductNotFound)
}

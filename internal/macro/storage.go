// Package macro записывает законченные последовательности команд и
// воспроизводит их на новых заказах.
package macro

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/command"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// Macro: замороженная копия последовательности команд. Хранимые команды
// никогда не выполняются напрямую: воспроизведение работает на клонах.
type Macro struct {
	ID        int
	CreatedAt time.Time

	commands []command.Command
}

// Commands возвращает копию списка команд макроса.
func (m Macro) Commands() []command.Command {
	result := make([]command.Command, len(m.commands))
	copy(result, m.commands)
	return result
}

// CommandCount возвращает количество команд.
func (m Macro) CommandCount() int { return len(m.commands) }

// Storage: реестр макросов: append-only, без вытеснения. Создаётся явно
// владельцем (процессом или сессией) и передаётся зависимостям.
type Storage struct {
	mu      sync.RWMutex
	macros  []Macro
	logger  *log.Entry
	metrics *metrics.DeskMetrics
	now     func() time.Time
}

// NewStorage создаёт пустой реестр. logger и m могут быть nil.
func NewStorage(logger *log.Entry, m *metrics.DeskMetrics) *Storage {
	if logger == nil {
		logger = log.New().WithField("component", "macro-storage")
	}
	return &Storage{
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateMacro клонирует команды и сохраняет их как новый макрос со
// следующим порядковым номером.
func (s *Storage) CreateMacro(commands []command.Command) (Macro, error) {
	if len(commands) == 0 {
		return Macro{}, domain.ErrMacroEmpty
	}

	// Клонируем до захвата блокировки: ошибка клонирования не трогает реестр.
	snapshot := make([]command.Command, 0, len(commands))
	for idx, cmd := range commands {
		cloned, err := command.Clone(cmd)
		if err != nil {
			return Macro{}, fmt.Errorf("macro command %d: %w", idx, err)
		}
		snapshot = append(snapshot, cloned)
	}

	s.mu.Lock()
	macro := Macro{
		ID:        len(s.macros) + 1,
		CreatedAt: s.now(),
		commands:  snapshot,
	}
	s.macros = append(s.macros, macro)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordMacroCreated()
	}
	s.logger.WithFields(log.Fields{
		"macro_id": macro.ID,
		"commands": len(snapshot),
	}).Info("macro saved")

	return macro, nil
}

// GetMacros возвращает макросы в порядке создания.
func (s *Storage) GetMacros() []Macro {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Macro, len(s.macros))
	copy(result, s.macros)
	return result
}

// GetMacro возвращает макрос по точному совпадению идентификатора.
func (s *Storage) GetMacro(id int) (Macro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, macro := range s.macros {
		if macro.ID == id {
			return macro, nil
		}
	}
	return Macro{}, fmt.Errorf("%w: id %d", domain.ErrMacroNotFound, id)
}

// Len возвращает количество макросов.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.macros)
}

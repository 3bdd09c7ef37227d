package desk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/command"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/macro"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// addProductCommandName: имя составной команды «строка + списание остатка».
const addProductCommandName = "add_product_with_stock"

// Service управляет открытыми сессиями, каталогом и реестром макросов.
type Service struct {
	mu    sync.RWMutex
	desks map[string]*Desk

	products domain.ProductRepository
	macros   *macro.Storage
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	logger   *log.Entry
	metrics  *metrics.DeskMetrics
	now      func() time.Time
}

// NewService создаёт desk-сервис. timeline, outbox и m могут быть nil.
func NewService(
	products domain.ProductRepository,
	macros *macro.Storage,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
	m *metrics.DeskMetrics,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "desk")
	}
	if macros == nil {
		macros = macro.NewStorage(logger.WithField("component", "macro-storage"), m)
	}
	return &Service{
		desks:    make(map[string]*Desk),
		products: products,
		macros:   macros,
		timeline: timeline,
		outbox:   outbox,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Open открывает новую сессию с пустым заказом.
func (s *Service) Open() View {
	defer s.observe(domain.DeskOperationOpen, time.Now())

	order := domain.NewOrder()
	d := newDesk(order, s.newInvoker(order.ID()), s.now())
	s.register(d)

	view := d.view()
	s.emit(view, domain.TimelineDeskOpened, "desk opened", nil)
	return view
}

// Get возвращает текущее состояние сессии.
func (s *Service) Get(id string) (View, error) {
	d, err := s.lock(id)
	if err != nil {
		return View{}, err
	}
	defer d.mu.Unlock()
	return d.view(), nil
}

// AddProduct добавляет строку и списывает остаток одной составной командой.
func (s *Service) AddProduct(id string, productID int64, quantity int32) (View, error) {
	defer s.observe(domain.DeskOperationAdd, time.Now())

	product, err := s.products.Get(productID)
	if err != nil {
		return View{}, err
	}

	d, err := s.lock(id)
	if err != nil {
		return View{}, err
	}
	defer d.mu.Unlock()

	cmd := command.NewCompositeCommand(addProductCommandName,
		command.NewAddProductCommand(d.order, product, quantity),
		command.NewAddStockCommand(product, -quantity),
	)
	if err := d.invoker.ExecuteCommand(cmd); err != nil {
		return View{}, err
	}

	view := d.view()
	s.emit(view, domain.TimelineProductAdded, fmt.Sprintf("%s x%d", product.Name, quantity), map[string]any{
		"product_id": productID,
		"quantity":   quantity,
	})
	return view, nil
}

// Undo отменяет последнюю выполненную команду сессии.
func (s *Service) Undo(id string) (View, error) {
	defer s.observe(domain.DeskOperationUndo, time.Now())

	d, err := s.lock(id)
	if err != nil {
		return View{}, err
	}
	defer d.mu.Unlock()

	kind := lastKind(d.invoker.History())
	if err := d.invoker.Undo(); err != nil {
		return View{}, err
	}

	view := d.view()
	s.emit(view, domain.TimelineCommandUndone, string(kind), nil)
	return view, nil
}

// Redo повторяет последнюю отменённую команду. Пустой буфер повтора не ошибка.
func (s *Service) Redo(id string) (View, error) {
	defer s.observe(domain.DeskOperationRedo, time.Now())

	d, err := s.lock(id)
	if err != nil {
		return View{}, err
	}
	defer d.mu.Unlock()

	if !d.invoker.CanRedo() {
		return d.view(), nil
	}
	if err := d.invoker.Redo(); err != nil {
		return View{}, err
	}
	kind := lastKind(d.invoker.History())

	view := d.view()
	s.emit(view, domain.TimelineCommandRedone, string(kind), nil)
	return view, nil
}

// SaveMacro записывает выполненную историю сессии как макрос и очищает очередь.
func (s *Service) SaveMacro(id string) (MacroView, error) {
	defer s.observe(domain.DeskOperationMacro, time.Now())

	d, err := s.lock(id)
	if err != nil {
		return MacroView{}, err
	}
	defer d.mu.Unlock()

	m, err := s.macros.CreateMacro(d.invoker.History())
	if err != nil {
		return MacroView{}, err
	}
	d.invoker.ClearCommand()

	s.emit(d.view(), domain.TimelineMacroSaved, fmt.Sprintf("macro #%d", m.ID), map[string]any{
		"macro_id": m.ID,
		"commands": m.CommandCount(),
	})
	return macroView(m), nil
}

// ListMacros возвращает все макросы в порядке создания.
func (s *Service) ListMacros() []MacroView {
	macros := s.macros.GetMacros()
	result := make([]MacroView, 0, len(macros))
	for _, m := range macros {
		result = append(result, macroView(m))
	}
	return result
}

// GetMacro возвращает макрос по идентификатору.
func (s *Service) GetMacro(macroID int) (MacroView, error) {
	m, err := s.macros.GetMacro(macroID)
	if err != nil {
		return MacroView{}, err
	}
	return macroView(m), nil
}

// ReplayMacro воспроизводит макрос на новом заказе и открывает для него сессию.
func (s *Service) ReplayMacro(macroID int) (View, error) {
	defer s.observe(domain.DeskOperationReplay, time.Now())

	m, err := s.macros.GetMacro(macroID)
	if err != nil {
		return View{}, err
	}

	order, invoker, err := macro.ReplayFresh(m, s.logger.WithField("macro_id", macroID), s.metrics)
	if err != nil {
		s.logger.WithError(err).WithField("macro_id", macroID).Warn("macro replay failed")
		return View{}, err
	}

	d := newDesk(order, invoker, s.now())
	s.register(d)

	d.mu.Lock()
	view := d.view()
	d.mu.Unlock()

	s.emit(view, domain.TimelineMacroReplayed, fmt.Sprintf("macro #%d", macroID), map[string]any{"macro_id": macroID})
	return view, nil
}

// Snapshot сохраняет снимок строк заказа и возвращает его индекс.
func (s *Service) Snapshot(id string) (int, error) {
	defer s.observe(domain.DeskOperationSnapshot, time.Now())

	d, err := s.lock(id)
	if err != nil {
		return 0, err
	}
	defer d.mu.Unlock()

	index, err := d.caretaker.AddMemento(d.order.SaveStateToMemento())
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.RecordSnapshotTaken()
	}

	s.emit(d.view(), domain.TimelineSnapshotTaken, fmt.Sprintf("snapshot #%d", index), map[string]any{"index": index})
	return index, nil
}

// Restore возвращает строки заказа к снимку index. Резерв остатков следует за
// строками: товар отброшенных строк возвращается на склад, а строки снимка,
// отменённые после него, резервируются заново. Нехватка остатка отменяет
// восстановление целиком. История команд сессии сбрасывается.
func (s *Service) Restore(id string, index int) (View, error) {
	defer s.observe(domain.DeskOperationRestore, time.Now())

	d, err := s.lock(id)
	if err != nil {
		return View{}, err
	}
	defer d.mu.Unlock()

	m, err := d.caretaker.GetMemento(index)
	if err != nil {
		return View{}, err
	}
	current := d.order.Lines()
	if err := s.rebalanceStock(current, m.Lines()); err != nil {
		return View{}, err
	}
	if err := d.order.RestoreStateFromMemento(m); err != nil {
		return View{}, errors.Join(err, s.rebalanceStock(m.Lines(), current))
	}
	d.invoker.ResetHistory()
	if s.metrics != nil {
		s.metrics.RecordSnapshotRestored()
	}

	view := d.view()
	s.emit(view, domain.TimelineSnapshotRestored, fmt.Sprintf("snapshot #%d", index), map[string]any{"index": index})
	return view, nil
}

// Process подводит итог заказа и закрывает сессию.
func (s *Service) Process(id string) (Summary, error) {
	defer s.observe(domain.DeskOperationProcess, time.Now())

	d, err := s.lock(id)
	if err != nil {
		return Summary{}, err
	}
	defer d.mu.Unlock()

	d.closed = true
	s.mu.Lock()
	delete(s.desks, id)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordDeskClosed()
	}

	summary := Summary{View: d.view(), ProcessedAt: s.now()}
	s.logger.WithFields(log.Fields{
		"desk_id":           id,
		"total_quantity":    summary.TotalQuantity,
		"total_price_minor": summary.TotalPriceMinor,
	}).Info("order processed")

	s.emit(summary.View, domain.TimelineOrderProcessed, "order processed", map[string]any{
		"total_quantity": summary.TotalQuantity,
	})
	return summary, nil
}

// Timeline возвращает события сессии. Доступен и после Process.
func (s *Service) Timeline(id string) ([]domain.TimelineEvent, error) {
	if s.timeline == nil {
		if _, err := s.lookup(id); err != nil {
			return nil, err
		}
		return nil, nil
	}
	events, err := s.timeline.List(id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		if _, err := s.lookup(id); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// Products возвращает каталог с текущими остатками.
func (s *Service) Products() ([]ProductView, error) {
	products, err := s.products.List()
	if err != nil {
		return nil, err
	}
	result := make([]ProductView, 0, len(products))
	for _, p := range products {
		result = append(result, ProductView{
			ID:             p.ID,
			Name:           p.Name,
			UnitPriceMinor: p.UnitPriceMinor,
			Stock:          p.Stock(),
		})
	}
	return result, nil
}

// ActiveDesks возвращает количество открытых сессий.
func (s *Service) ActiveDesks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.desks)
}

func (s *Service) newInvoker(deskID string) *command.Invoker {
	return command.NewInvoker(s.logger.WithFields(log.Fields{
		"component": "invoker",
		"desk_id":   deskID,
	}), s.metrics)
}

func (s *Service) register(d *Desk) {
	s.mu.Lock()
	s.desks[d.order.ID()] = d
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordDeskOpened()
	}
	s.logger.WithField("desk_id", d.order.ID()).Debug("desk opened")
}

func (s *Service) lookup(id string) (*Desk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.desks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDeskNotFound, id)
	}
	return d, nil
}

// lock находит сессию и захватывает её мьютекс. Сессия, закрытая между
// поиском и захватом, считается ненайденной.
func (s *Service) lock(id string) (*Desk, error) {
	d, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrDeskNotFound, id)
	}
	return d, nil
}

func (s *Service) observe(op domain.DeskOperation, started time.Time) {
	if s.metrics != nil {
		s.metrics.RecordOperationDuration(string(op), time.Since(started))
	}
}

func macroView(m macro.Macro) MacroView {
	commands := m.Commands()
	views := make([]CommandView, 0, len(commands))
	for _, cmd := range commands {
		views = append(views, describeCommand(cmd))
	}
	return MacroView{ID: m.ID, CreatedAt: m.CreatedAt, Commands: views}
}

func lastKind(history []command.Command) command.Kind {
	if len(history) == 0 {
		return command.KindUnknown
	}
	return command.KindOf(history[len(history)-1])
}

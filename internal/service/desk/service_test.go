package desk

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/command"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

const (
	laptopID   int64 = 1
	keyboardID int64 = 2
	mouseID    int64 = 3
)

type fixture struct {
	svc      *Service
	products *memory.ProductRepository
	outbox   *memory.OutboxRepository
}

func loggerForTests() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "desk-test")
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	products := memory.NewProductRepository()
	require.NoError(t, products.Add(domain.NewProduct(laptopID, "Laptop", 20000, 10)))
	require.NoError(t, products.Add(domain.NewProduct(keyboardID, "Keyboard", 300, 50)))
	require.NoError(t, products.Add(domain.NewProduct(mouseID, "Mouse", 150, 70)))

	outbox := memory.NewOutboxRepository()
	dm := metrics.NewDeskMetricsWithRegisterer(prometheus.NewRegistry())
	svc := NewService(products, nil, memory.NewTimelineRepository(), outbox, loggerForTests(), dm)

	return fixture{svc: svc, products: products, outbox: outbox}
}

func (f fixture) stock(t *testing.T, id int64) int32 {
	t.Helper()
	p, err := f.products.Get(id)
	require.NoError(t, err)
	return p.Stock()
}

func TestService_OpenAndGet(t *testing.T) {
	f := newFixture(t)

	opened := f.svc.Open()
	require.NotEmpty(t, opened.ID)
	require.Empty(t, opened.Lines)
	require.Equal(t, 1, f.svc.ActiveDesks())

	got, err := f.svc.Get(opened.ID)
	require.NoError(t, err)
	require.Equal(t, opened.ID, got.ID)

	_, err = f.svc.Get("missing")
	require.ErrorIs(t, err, domain.ErrDeskNotFound)
	require.True(t, domain.IsNotFound(err))
}

func TestService_AddProductUpdatesOrderAndStock(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()

	view, err := f.svc.AddProduct(desk.ID, laptopID, 1)
	require.NoError(t, err)
	view, err = f.svc.AddProduct(desk.ID, keyboardID, 1)
	require.NoError(t, err)

	want := []domain.OrderLine{
		{ProductID: laptopID, UnitPriceMinor: 20000, Quantity: 1},
		{ProductID: keyboardID, UnitPriceMinor: 300, Quantity: 1},
	}
	if diff := cmp.Diff(want, view.Lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, int64(20300), view.TotalPriceMinor)
	require.Equal(t, 2, view.UndoCount)
	require.Equal(t, int32(9), f.stock(t, laptopID))
	require.Equal(t, int32(49), f.stock(t, keyboardID))
}

func TestService_AddProductErrorsLeaveStateUntouched(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()

	_, err := f.svc.AddProduct(desk.ID, 99, 1)
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = f.svc.AddProduct(desk.ID, laptopID, 0)
	require.ErrorIs(t, err, domain.ErrQuantityInvalid)

	_, err = f.svc.AddProduct(desk.ID, laptopID, 11)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.True(t, domain.IsInvalidCommand(err))

	_, err = f.svc.AddProduct("missing", laptopID, 1)
	require.ErrorIs(t, err, domain.ErrDeskNotFound)

	view, err := f.svc.Get(desk.ID)
	require.NoError(t, err)
	require.Empty(t, view.Lines)
	require.Zero(t, view.UndoCount)
	require.Equal(t, int32(10), f.stock(t, laptopID))
}

func TestService_UndoRedo(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()

	_, err := f.svc.Undo(desk.ID)
	require.ErrorIs(t, err, domain.ErrEmptyHistory)

	_, err = f.svc.AddProduct(desk.ID, laptopID, 2)
	require.NoError(t, err)

	view, err := f.svc.Undo(desk.ID)
	require.NoError(t, err)
	require.Empty(t, view.Lines)
	require.Equal(t, 1, view.RedoCount)
	require.Equal(t, int32(10), f.stock(t, laptopID))

	view, err = f.svc.Redo(desk.ID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Zero(t, view.RedoCount)
	require.Equal(t, int32(8), f.stock(t, laptopID))

	// Пустой буфер повтора не ошибка.
	again, err := f.svc.Redo(desk.ID)
	require.NoError(t, err)
	require.Equal(t, view.Lines, again.Lines)
}

func TestService_NewCommandClearsRedo(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()

	_, err := f.svc.AddProduct(desk.ID, laptopID, 1)
	require.NoError(t, err)
	_, err = f.svc.Undo(desk.ID)
	require.NoError(t, err)

	view, err := f.svc.AddProduct(desk.ID, mouseID, 1)
	require.NoError(t, err)
	require.Zero(t, view.RedoCount)

	view, err = f.svc.Redo(desk.ID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, mouseID, view.Lines[0].ProductID)
	require.Equal(t, int32(10), f.stock(t, laptopID))
}

func TestService_SaveAndReplayMacro(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()

	_, err := f.svc.SaveMacro(desk.ID)
	require.ErrorIs(t, err, domain.ErrMacroEmpty)

	_, err = f.svc.AddProduct(desk.ID, laptopID, 1)
	require.NoError(t, err)
	recorded, err := f.svc.AddProduct(desk.ID, keyboardID, 1)
	require.NoError(t, err)

	saved, err := f.svc.SaveMacro(desk.ID)
	require.NoError(t, err)
	require.Equal(t, 1, saved.ID)
	require.Len(t, saved.Commands, 2)
	require.Equal(t, command.KindComposite, saved.Commands[0].Kind)
	require.Equal(t, laptopID, saved.Commands[0].Children[0].ProductID)
	require.Equal(t, int32(-1), saved.Commands[0].Children[1].Delta)

	replayed, err := f.svc.ReplayMacro(saved.ID)
	require.NoError(t, err)
	require.NotEqual(t, desk.ID, replayed.ID)
	require.Equal(t, recorded.Lines, replayed.Lines)
	require.Equal(t, 2, replayed.UndoCount)
	require.Equal(t, 2, f.svc.ActiveDesks())

	// Исходная сессия не изменилась.
	original, err := f.svc.Get(desk.ID)
	require.NoError(t, err)
	require.Equal(t, recorded.Lines, original.Lines)
	require.Equal(t, 2, original.UndoCount)

	require.Equal(t, int32(8), f.stock(t, laptopID))
	require.Equal(t, int32(48), f.stock(t, keyboardID))

	// Отмена в воспроизведённой сессии не трогает исходную.
	_, err = f.svc.Undo(replayed.ID)
	require.NoError(t, err)
	original, err = f.svc.Get(desk.ID)
	require.NoError(t, err)
	require.Len(t, original.Lines, 2)

	macros := f.svc.ListMacros()
	require.Len(t, macros, 1)
	got, err := f.svc.GetMacro(saved.ID)
	require.NoError(t, err)
	require.Equal(t, saved, got)
}

func TestService_ReplayMacroFailureOpensNothing(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()

	_, err := f.svc.AddProduct(desk.ID, keyboardID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddProduct(desk.ID, laptopID, 6)
	require.NoError(t, err)
	saved, err := f.svc.SaveMacro(desk.ID)
	require.NoError(t, err)

	_, err = f.svc.ReplayMacro(saved.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.Equal(t, 1, f.svc.ActiveDesks())
	require.Equal(t, int32(4), f.stock(t, laptopID))
	require.Equal(t, int32(49), f.stock(t, keyboardID))

	_, err = f.svc.ReplayMacro(42)
	require.ErrorIs(t, err, domain.ErrMacroNotFound)
	_, err = f.svc.GetMacro(42)
	require.ErrorIs(t, err, domain.ErrMacroNotFound)
}

func TestService_SnapshotRestore(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()

	_, err := f.svc.AddProduct(desk.ID, laptopID, 1)
	require.NoError(t, err)

	index, err := f.svc.Snapshot(desk.ID)
	require.NoError(t, err)
	require.Zero(t, index)

	_, err = f.svc.AddProduct(desk.ID, mouseID, 2)
	require.NoError(t, err)

	view, err := f.svc.Restore(desk.ID, index)
	require.NoError(t, err)
	require.Equal(t, []domain.OrderLine{{ProductID: laptopID, UnitPriceMinor: 20000, Quantity: 1}}, view.Lines)
	require.Zero(t, view.UndoCount)
	require.Zero(t, view.RedoCount)
	require.Equal(t, 1, view.SnapshotCount)

	require.Equal(t, int32(70), f.stock(t, mouseID))
	require.Equal(t, int32(9), f.stock(t, laptopID))

	_, err = f.svc.Undo(desk.ID)
	require.ErrorIs(t, err, domain.ErrEmptyHistory)

	_, err = f.svc.Restore(desk.ID, 1)
	require.ErrorIs(t, err, domain.ErrIndexOutOfRange)
	_, err = f.svc.Restore(desk.ID, -1)
	require.ErrorIs(t, err, domain.ErrIndexOutOfRange)
}

func TestService_RestoreReleasesStockOfDroppedLines(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()

	index, err := f.svc.Snapshot(desk.ID)
	require.NoError(t, err)

	_, err = f.svc.AddProduct(desk.ID, laptopID, 3)
	require.NoError(t, err)
	require.Equal(t, int32(7), f.stock(t, laptopID))

	view, err := f.svc.Restore(desk.ID, index)
	require.NoError(t, err)
	require.Empty(t, view.Lines)
	require.Equal(t, int32(10), f.stock(t, laptopID))

	_, err = f.svc.Undo(desk.ID)
	require.ErrorIs(t, err, domain.ErrEmptyHistory)
	require.Equal(t, int32(10), f.stock(t, laptopID))
}

func TestService_RestoreReservesStockOfReturnedLines(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()

	_, err := f.svc.AddProduct(desk.ID, laptopID, 2)
	require.NoError(t, err)
	index, err := f.svc.Snapshot(desk.ID)
	require.NoError(t, err)

	_, err = f.svc.Undo(desk.ID)
	require.NoError(t, err)
	require.Equal(t, int32(10), f.stock(t, laptopID))

	view, err := f.svc.Restore(desk.ID, index)
	require.NoError(t, err)
	require.Equal(t, []domain.OrderLine{{ProductID: laptopID, UnitPriceMinor: 20000, Quantity: 2}}, view.Lines)
	require.Equal(t, int32(8), f.stock(t, laptopID))
}

func TestService_RestoreWithoutStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	first := f.svc.Open()
	second := f.svc.Open()

	_, err := f.svc.AddProduct(first.ID, laptopID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddProduct(first.ID, mouseID, 60)
	require.NoError(t, err)
	index, err := f.svc.Snapshot(first.ID)
	require.NoError(t, err)
	_, err = f.svc.Undo(first.ID)
	require.NoError(t, err)
	_, err = f.svc.Undo(first.ID)
	require.NoError(t, err)

	_, err = f.svc.AddProduct(second.ID, mouseID, 65)
	require.NoError(t, err)

	_, err = f.svc.Restore(first.ID, index)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	view, err := f.svc.Get(first.ID)
	require.NoError(t, err)
	require.Empty(t, view.Lines)
	require.Equal(t, 2, view.RedoCount)
	require.Equal(t, int32(10), f.stock(t, laptopID))
	require.Equal(t, int32(5), f.stock(t, mouseID))
}

func TestService_TimelineWithoutRepository(t *testing.T) {
	products := memory.NewProductRepository()
	svc := NewService(products, nil, nil, nil, loggerForTests(), nil)
	desk := svc.Open()

	events, err := svc.Timeline(desk.ID)
	require.NoError(t, err)
	require.Empty(t, events)

	_, err = svc.Timeline("missing")
	require.ErrorIs(t, err, domain.ErrDeskNotFound)
}

func TestService_ProcessClosesDesk(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()

	_, err := f.svc.AddProduct(desk.ID, laptopID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddProduct(desk.ID, mouseID, 2)
	require.NoError(t, err)

	summary, err := f.svc.Process(desk.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), summary.TotalQuantity)
	require.Equal(t, int64(20300), summary.TotalPriceMinor)
	require.False(t, summary.ProcessedAt.IsZero())
	require.Zero(t, f.svc.ActiveDesks())

	_, err = f.svc.Get(desk.ID)
	require.ErrorIs(t, err, domain.ErrDeskNotFound)
	_, err = f.svc.Process(desk.ID)
	require.ErrorIs(t, err, domain.ErrDeskNotFound)

	events, err := f.svc.Timeline(desk.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TimelineOrderProcessed, events[len(events)-1].Type)
}

func TestService_TimelineAndOutbox(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()

	_, err := f.svc.AddProduct(desk.ID, laptopID, 1)
	require.NoError(t, err)
	_, err = f.svc.Undo(desk.ID)
	require.NoError(t, err)
	_, err = f.svc.Redo(desk.ID)
	require.NoError(t, err)
	_, err = f.svc.Snapshot(desk.ID)
	require.NoError(t, err)

	events, err := f.svc.Timeline(desk.ID)
	require.NoError(t, err)

	types := make([]string, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}
	require.Equal(t, []string{
		domain.TimelineDeskOpened,
		domain.TimelineProductAdded,
		domain.TimelineCommandUndone,
		domain.TimelineCommandRedone,
		domain.TimelineSnapshotTaken,
	}, types)
	require.Equal(t, "Laptop x1", events[1].Reason)
	require.Equal(t, string(command.KindComposite), events[2].Reason)

	pending := f.outbox.AllPending()
	require.Len(t, pending, 5)
	require.Equal(t, desk.ID, pending[1].AggregateID)
	require.Equal(t, domain.TimelineProductAdded, pending[1].EventType)

	var payload struct {
		DeskID    string         `json:"desk_id"`
		LineCount int            `json:"line_count"`
		Metadata  map[string]any `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(pending[1].Payload, &payload))
	require.Equal(t, desk.ID, payload.DeskID)
	require.Equal(t, 1, payload.LineCount)
	require.EqualValues(t, laptopID, payload.Metadata["product_id"])

	_, err = f.svc.Timeline("missing")
	require.ErrorIs(t, err, domain.ErrDeskNotFound)
}

func TestService_Products(t *testing.T) {
	f := newFixture(t)
	desk := f.svc.Open()
	_, err := f.svc.AddProduct(desk.ID, mouseID, 5)
	require.NoError(t, err)

	products, err := f.svc.Products()
	require.NoError(t, err)
	require.Equal(t, []ProductView{
		{ID: laptopID, Name: "Laptop", UnitPriceMinor: 20000, Stock: 10},
		{ID: keyboardID, Name: "Keyboard", UnitPriceMinor: 300, Stock: 50},
		{ID: mouseID, Name: "Mouse", UnitPriceMinor: 150, Stock: 65},
	}, products)
}

func TestService_ConcurrentDesksShareStock(t *testing.T) {
	f := newFixture(t)

	const desks = 10
	ids := make([]string, desks)
	for i := range ids {
		ids[i] = f.svc.Open().ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := f.svc.AddProduct(id, mouseID, 1); err != nil {
					t.Errorf("add product: %v", err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	require.Equal(t, int32(20), f.stock(t, mouseID))
}

package app

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/macro"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/desk"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

// defaultCatalog: демонстрационный каталог: цена в минимальных единицах и остаток.
var defaultCatalog = []struct {
	ID    int64
	Name  string
	Price int64
	Stock int32
}{
	{ID: 1, Name: "Laptop", Price: 20000, Stock: 10},
	{ID: 2, Name: "Keyboard", Price: 300, Stock: 50},
	{ID: 3, Name: "Mouse", Price: 150, Stock: 70},
}

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Products      *memory.ProductRepository
	Outbox        *memory.OutboxRepository
	Timeline      *memory.TimelineRepository
	Macros        *macro.Storage
	DeskMetrics   *metrics.DeskMetrics
	OutboxMetrics *metrics.OutboxMetrics
	Desks         *desk.Service
	Logger        *log.Entry
}

// NewDependencies создаёт хранилища, метрики и desk-сервис.
// registerer == nil означает prometheus.DefaultRegisterer.
func NewDependencies(cfg Config, registerer prometheus.Registerer, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	deskMetrics := metrics.NewDeskMetricsWithRegisterer(registerer)
	products := memory.NewProductRepository()
	if cfg.SeedCatalog {
		if err := seedCatalog(products); err != nil {
			return nil, err
		}
	}

	outbox := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()
	macros := macro.NewStorage(logger.WithField("component", "macro-storage"), deskMetrics)

	// Без брокеров outbox некому разгружать: события пишутся только в timeline.
	var journal domain.OutboxRepository
	if cfg.KafkaEnabled() {
		journal = outbox
	}

	return &Dependencies{
		Products:      products,
		Outbox:        outbox,
		Timeline:      timeline,
		Macros:        macros,
		DeskMetrics:   deskMetrics,
		OutboxMetrics: metrics.NewOutboxMetricsWithRegisterer(registerer),
		Desks: desk.NewService(products, macros, timeline, journal,
			logger.WithField("component", "desk"), deskMetrics),
		Logger: logger,
	}, nil
}

func seedCatalog(products domain.ProductRepository) error {
	for _, item := range defaultCatalog {
		if err := products.Add(domain.NewProduct(item.ID, item.Name, item.Price, item.Stock)); err != nil {
			return fmt.Errorf("seed product %d: %w", item.ID, err)
		}
	}
	return nil
}

// catalogCheck используется health-проверкой каталога.
func catalogCheck(products domain.ProductRepository) func() error {
	return func() error {
		list, err := products.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return errors.New("product catalog is empty")
		}
		return nil
	}
}

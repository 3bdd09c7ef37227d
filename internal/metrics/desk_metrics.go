package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeskMetrics содержит метрики движка команд, макросов и снимков.
type DeskMetrics struct {
	// Счётчики команд по виду
	commandsExecuted *prometheus.CounterVec
	commandsUndone   *prometheus.CounterVec
	commandsRedone   *prometheus.CounterVec
	commandsFailed   *prometheus.CounterVec
	undoEmpty        prometheus.Counter

	// Макросы и снимки
	macrosCreated    prometheus.Counter
	macroReplays     *prometheus.CounterVec
	snapshotsTaken   prometheus.Counter
	snapshotsRestore prometheus.Counter

	// Гистограмма времени операций desk-сервиса
	operationDuration *prometheus.HistogramVec

	// Gauge для открытых сессий
	activeDesks prometheus.Gauge
}

// NewDeskMetrics создаёт метрики в DefaultRegisterer.
func NewDeskMetrics() *DeskMetrics {
	return NewDeskMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewDeskMetricsWithRegisterer создаёт метрики в заданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewDeskMetricsWithRegisterer(registerer prometheus.Registerer) *DeskMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &DeskMetrics{
		commandsExecuted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_commands_executed_total",
			Help: "Total number of commands executed, including redo",
		}, []string{"kind"}),
		commandsUndone: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_commands_undone_total",
			Help: "Total number of commands undone",
		}, []string{"kind"}),
		commandsRedone: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_commands_redone_total",
			Help: "Total number of commands redone",
		}, []string{"kind"}),
		commandsFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_commands_failed_total",
			Help: "Total number of commands rejected or failed, by phase",
		}, []string{"kind", "phase"}),
		undoEmpty: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_undo_empty_history_total",
			Help: "Total number of undo attempts on an empty history",
		}),
		macrosCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_macros_created_total",
			Help: "Total number of macros recorded",
		}),
		macroReplays: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_macro_replays_total",
			Help: "Total number of macro replays grouped by result",
		}, []string{"result"}),
		snapshotsTaken: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_snapshots_taken_total",
			Help: "Total number of order snapshots taken",
		}),
		snapshotsRestore: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_snapshots_restored_total",
			Help: "Total number of orders restored from snapshots",
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderdesk_operation_duration_seconds",
			Help:    "Duration of desk operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"operation"}),
		activeDesks: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderdesk_active_desks",
			Help: "Number of currently open desks",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCommandExecuted увеличивает счётчик выполненных команд.
func (m *DeskMetrics) RecordCommandExecuted(kind string) {
	m.commandsExecuted.WithLabelValues(kind).Inc()
}

// RecordCommandUndone увеличивает счётчик отменённых команд.
func (m *DeskMetrics) RecordCommandUndone(kind string) {
	m.commandsUndone.WithLabelValues(kind).Inc()
}

// RecordCommandRedone увеличивает счётчик повторённых команд.
func (m *DeskMetrics) RecordCommandRedone(kind string) {
	m.commandsRedone.WithLabelValues(kind).Inc()
}

// RecordCommandFailed фиксирует отказ команды на фазе execute/undo/redo.
func (m *DeskMetrics) RecordCommandFailed(kind, phase string) {
	m.commandsFailed.WithLabelValues(kind, phase).Inc()
}

// RecordUndoEmpty фиксирует попытку Undo на пустой истории.
func (m *DeskMetrics) RecordUndoEmpty() {
	m.undoEmpty.Inc()
}

// RecordMacroCreated увеличивает счётчик записанных макросов.
func (m *DeskMetrics) RecordMacroCreated() {
	m.macrosCreated.Inc()
}

// RecordMacroReplay фиксирует воспроизведение макроса с результатом.
func (m *DeskMetrics) RecordMacroReplay(success bool) {
	result := "success"
	if !success {
		result = "failed"
	}
	m.macroReplays.WithLabelValues(result).Inc()
}

// RecordSnapshotTaken увеличивает счётчик снимков.
func (m *DeskMetrics) RecordSnapshotTaken() {
	m.snapshotsTaken.Inc()
}

// RecordSnapshotRestored увеличивает счётчик восстановлений.
func (m *DeskMetrics) RecordSnapshotRestored() {
	m.snapshotsRestore.Inc()
}

// RecordOperationDuration записывает время выполнения операции desk-сервиса.
func (m *DeskMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDeskOpened увеличивает количество открытых сессий.
func (m *DeskMetrics) RecordDeskOpened() {
	m.activeDesks.Inc()
}

// RecordDeskClosed уменьшает количество открытых сессий.
func (m *DeskMetrics) RecordDeskClosed() {
	m.activeDesks.Dec()
}

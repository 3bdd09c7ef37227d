package domain

import "time"

// TimelineEvent описывает событие в жизни сессии редактирования заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

// Типы событий timeline.
const (
	TimelineDeskOpened       = "DeskOpened"
	TimelineProductAdded     = "ProductAdded"
	TimelineCommandUndone    = "CommandUndone"
	TimelineCommandRedone    = "CommandRedone"
	TimelineMacroSaved       = "MacroSaved"
	TimelineMacroReplayed    = "MacroReplayed"
	TimelineSnapshotTaken    = "SnapshotTaken"
	TimelineSnapshotRestored = "SnapshotRestored"
	TimelineOrderProcessed   = "OrderProcessed"
)

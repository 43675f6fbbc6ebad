// Package events provides the in-process event bus and event types.
package events

// EventType identifies a kind of system event
type EventType string

const (
	// CustomersChanged is emitted after the customer collection was modified
	CustomersChanged EventType = "customers_changed"
	// SnapshotTaken is emitted after a KPI snapshot was persisted
	SnapshotTaken EventType = "snapshot_taken"
	// PolicyChanged is emitted when the risk policy file was reloaded
	PolicyChanged EventType = "policy_changed"

	// PanelMounted is emitted when a drill-down panel session is created
	PanelMounted EventType = "panel_mounted"
	// PanelUnmounted is emitted when a panel session is closed or evicted
	PanelUnmounted EventType = "panel_unmounted"
	// PanelExpanded is emitted when a KPI tile is expanded
	PanelExpanded EventType = "panel_expanded"
	// PanelCollapsed is emitted when the expanded tile collapses
	PanelCollapsed EventType = "panel_collapsed"

	// DrillDownLoaded is emitted when drill-down rows were applied
	DrillDownLoaded EventType = "drilldown_loaded"
	// DrillDownFailed is emitted when a drill-down fetch failed
	DrillDownFailed EventType = "drilldown_failed"
	// DrillDownDiscarded is emitted when a late response for a superseded request was dropped
	DrillDownDiscarded EventType = "drilldown_discarded"

	// BackupCompleted is emitted after a database backup was uploaded
	BackupCompleted EventType = "backup_completed"
	// SystemStatusChanged is emitted when database health flips
	SystemStatusChanged EventType = "system_status_changed"
	// ErrorOccurred is emitted for errors worth surfacing on the event stream
	ErrorOccurred EventType = "error_occurred"
)

// AllTypes lists every event type, in declaration order.
func AllTypes() []EventType {
	return []EventType{
		CustomersChanged,
		SnapshotTaken,
		PolicyChanged,
		PanelMounted,
		PanelUnmounted,
		PanelExpanded,
		PanelCollapsed,
		DrillDownLoaded,
		DrillDownFailed,
		DrillDownDiscarded,
		BackupCompleted,
		SystemStatusChanged,
		ErrorOccurred,
	}
}

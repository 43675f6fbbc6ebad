package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// CustomersChangedData contains data for CustomersChanged events
type CustomersChangedData struct {
	Reason     string `json:"reason"`
	CustomerID string `json:"customer_id,omitempty"`
	Count      int    `json:"count,omitempty"`
}

// EventType returns the event type for CustomersChangedData
func (d *CustomersChangedData) EventType() EventType {
	return CustomersChanged
}

// SnapshotTakenData contains data for SnapshotTaken events
type SnapshotTakenData struct {
	SnapshotID       int64 `json:"snapshot_id"`
	TotalCustomers   int   `json:"total_customers"`
	FlaggedCustomers int   `json:"flagged_customers"`
}

// EventType returns the event type for SnapshotTakenData
func (d *SnapshotTakenData) EventType() EventType {
	return SnapshotTaken
}

// PolicyChangedData contains data for PolicyChanged events
type PolicyChangedData struct {
	Bands   []string `json:"bands"`
	Flagged []string `json:"flagged"`
}

// EventType returns the event type for PolicyChangedData
func (d *PolicyChangedData) EventType() EventType {
	return PolicyChanged
}

// PanelData contains data for panel lifecycle and transition events
type PanelData struct {
	PanelID string `json:"panel_id"`
	KPI     string `json:"kpi,omitempty"`
	Reason  string `json:"reason,omitempty"`
	kind    EventType
}

// NewPanelData builds PanelData for one of the panel event types
func NewPanelData(eventType EventType, panelID, kpi, reason string) *PanelData {
	return &PanelData{PanelID: panelID, KPI: kpi, Reason: reason, kind: eventType}
}

// EventType returns the event type PanelData was built for
func (d *PanelData) EventType() EventType {
	return d.kind
}

// DrillDownData contains data for drill-down fetch outcome events
type DrillDownData struct {
	PanelID string `json:"panel_id"`
	KPI     string `json:"kpi"`
	Kind    string `json:"kind"`
	Rows    int    `json:"rows"`
	Error   string `json:"error,omitempty"`
	kind    EventType
}

// NewDrillDownData builds DrillDownData for one of the drill-down event types
func NewDrillDownData(eventType EventType, panelID, kpi, kind string, rows int, err error) *DrillDownData {
	d := &DrillDownData{PanelID: panelID, KPI: kpi, Kind: kind, Rows: rows, kind: eventType}
	if err != nil {
		d.Error = err.Error()
	}
	return d
}

// EventType returns the event type DrillDownData was built for
func (d *DrillDownData) EventType() EventType {
	return d.kind
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// SystemStatusData contains data for SystemStatusChanged events
type SystemStatusData struct {
	Healthy   bool              `json:"healthy"`
	Databases map[string]string `json:"databases"` // name -> "ok" or the failure
}

// EventType returns the event type for SystemStatusData
func (d *SystemStatusData) EventType() EventType {
	return SystemStatusChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

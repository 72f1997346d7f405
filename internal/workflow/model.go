package workflow

import "time"

// Типы триггеров. RECORD_* срабатывают от событий записи, MANUAL — по запросу.
const (
	TriggerRecordCreated = "RECORD_CREATED"
	TriggerRecordUpdated = "RECORD_UPDATED"
	TriggerManual        = "MANUAL"
)

// Типы узлов графа.
const (
	NodeTrigger   = "trigger"
	NodeCondition = "condition"
	NodeAction    = "action"
	NodeLog       = "log"
)

// Node — узел графа. Data хранит параметры узла как есть (jsonb).
type Node struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Edge — направленное ребро. SourceHandle ("true"/"false") выбирает ветку
// после condition-узла.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// Workflow — сохранённый граф автоматизации. TableID пуст для MANUAL.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TriggerType string    `json:"triggerType"`
	TableID     string    `json:"tableId,omitempty"`
	IsActive    bool      `json:"isActive"`
	Nodes       []Node    `json:"nodes"`
	Edges       []Edge    `json:"edges"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Статусы выполнения.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// LogEntry — одна строка журнала прогона.
type LogEntry struct {
	At      time.Time `json:"at"`
	NodeID  string    `json:"nodeId,omitempty"`
	Message string    `json:"message"`
}

// Execution — итог одного прогона графа. ID — ULID, сортируется по времени.
type Execution struct {
	ID          string     `json:"id"`
	WorkflowID  string     `json:"workflowId"`
	Status      string     `json:"status"`
	Logs        []LogEntry `json:"logs"`
	CompletedAt time.Time  `json:"completedAt"`
}

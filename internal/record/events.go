package record

// EventType — тип события мутации, на который подписан движок workflow.
type EventType string

const (
	EventRecordCreated EventType = "RECORD_CREATED"
	EventRecordUpdated EventType = "RECORD_UPDATED"
)

// Event — уведомление о совершённой мутации. Отправляется после коммита,
// получатель не должен блокировать вызывающего.
type Event struct {
	Type      EventType
	TableID   string
	TableName string
	Actor     string
	Record    map[string]any
}

// Notifier принимает события мутаций. Реализация обязана возвращаться
// немедленно (fire-and-forget со стороны Record Service).
type Notifier interface {
	Notify(ev Event)
}

func (s *Service) notify(ev Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ev)
}

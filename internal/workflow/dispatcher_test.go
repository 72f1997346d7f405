package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mapform/internal/logger"
	"mapform/internal/record"
)

func TestNotifyNeverBlocks(t *testing.T) {
	d := NewDispatcher(nil, nil, 1, 1, logger.Nop())

	done := make(chan struct{})
	go func() {
		// очередь на 1: второе и третье события должны отброситься молча
		for i := 0; i < 3; i++ {
			d.Notify(record.Event{Type: record.EventRecordCreated, TableName: "stations"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	assert.Len(t, d.events, 1)
}

func TestTriggerFor(t *testing.T) {
	tr, ok := triggerFor(record.EventRecordCreated)
	assert.True(t, ok)
	assert.Equal(t, TriggerRecordCreated, tr)

	tr, ok = triggerFor(record.EventRecordUpdated)
	assert.True(t, ok)
	assert.Equal(t, TriggerRecordUpdated, tr)

	_, ok = triggerFor(record.EventType("SOMETHING_ELSE"))
	assert.False(t, ok)
}

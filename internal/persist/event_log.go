package persist

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/innernet/server/internal/game"
	"go.uber.org/zap"
)

// EventWriter stores a batch of events. *EventRepo implements it.
type EventWriter interface {
	WriteEvents(ctx context.Context, events []Event) error
}

// EventLog buffers game events from the dispatcher and writes them in
// batches from its own goroutine. Enqueueing never blocks; events are
// dropped when the queue is full.
type EventLog struct {
	queue    chan Event
	writer   EventWriter
	interval time.Duration
	log      *zap.Logger
	dropped  atomic.Int64
	now      func() time.Time
}

func NewEventLog(writer EventWriter, queueSize int, interval time.Duration, log *zap.Logger) *EventLog {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &EventLog{
		queue:    make(chan Event, queueSize),
		writer:   writer,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// OnSceneChange implements game.SceneSink.
func (l *EventLog) OnSceneChange(gameCode, clientID int32, scene string) {
	l.enqueue(Event{GameCode: gameCode, ClientID: clientID, Kind: EventScene, Detail: scene})
}

// OnReady implements game.ReadySink.
func (l *EventLog) OnReady(gameCode, clientID int32) {
	l.enqueue(Event{GameCode: gameCode, ClientID: clientID, Kind: EventReady})
}

// OnOptionsChanged implements game.OptionsSink.
func (l *EventLog) OnOptionsChanged(gameCode int32, opts *game.Options) {
	l.enqueue(Event{
		GameCode:   gameCode,
		ClientID:   -1,
		Kind:       EventOptions,
		Options:    opts.Bytes(),
		MaxPlayers: opts.MaxPlayers,
		MapID:      opts.MapID,
		Impostors:  opts.NumImpostors,
	})
}

// Dropped returns how many events were discarded because the queue was full.
func (l *EventLog) Dropped() int64 {
	return l.dropped.Load()
}

func (l *EventLog) enqueue(e Event) {
	e.At = l.now()
	select {
	case l.queue <- e:
	default:
		if l.dropped.Add(1) == 1 {
			l.log.Warn("event queue full, dropping events", zap.Int("capacity", cap(l.queue)))
		}
	}
}

// Run writes queued events every interval until ctx is done, then flushes
// what is left.
func (l *EventLog) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var pending []Event
	for {
		select {
		case e := <-l.queue:
			pending = append(pending, e)
		case <-ticker.C:
			pending = l.flush(pending)
		case <-ctx.Done():
			l.flush(l.drain(pending))
			return
		}
	}
}

func (l *EventLog) drain(pending []Event) []Event {
	for {
		select {
		case e := <-l.queue:
			pending = append(pending, e)
		default:
			return pending
		}
	}
}

func (l *EventLog) flush(pending []Event) []Event {
	if len(pending) == 0 {
		return pending
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.writer.WriteEvents(ctx, pending); err != nil {
		l.log.Error("write events failed", zap.Int("count", len(pending)), zap.Error(err))
		return pending[:0]
	}
	l.log.Debug("events written", zap.Int("count", len(pending)))
	return pending[:0]
}

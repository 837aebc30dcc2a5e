package main

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tcolgate/motiontrack/motion"
)

// record is an event as handed to sinks, stamped with an id so that log
// lines and streamed events can be correlated.
type record struct {
	ID uuid.UUID `json:"id"`
	motion.Event
}

type sink interface {
	send(record)
}

const sinkQueue = 16

// dispatcher implements motion.Sink. Each sink gets its own queue and
// goroutine; when a queue is full the event is dropped for that sink so the
// detection loop never waits on a consumer.
type dispatcher struct {
	log    logrus.FieldLogger
	queues []chan record
	wg     sync.WaitGroup

	mu      sync.Mutex
	dropped int
}

func startDispatcher(log logrus.FieldLogger, sinks ...sink) *dispatcher {
	d := &dispatcher{log: log}
	for _, s := range sinks {
		q := make(chan record, sinkQueue)
		d.queues = append(d.queues, q)
		d.wg.Add(1)
		go func(s sink) {
			defer d.wg.Done()
			for r := range q {
				s.send(r)
			}
		}(s)
	}
	return d
}

func (d *dispatcher) HandleMotion(ev motion.Event) {
	r := record{ID: uuid.New(), Event: ev}
	for _, q := range d.queues {
		select {
		case q <- r:
		default:
			d.mu.Lock()
			d.dropped++
			n := d.dropped
			d.mu.Unlock()
			d.log.WithFields(logrus.Fields{"event_id": r.ID, "dropped": n}).Warn("sink queue full")
		}
	}
}

// Close drains the queues and waits for the sinks to finish.
func (d *dispatcher) Close() {
	for _, q := range d.queues {
		close(q)
	}
	d.wg.Wait()
}

// logSink is the motion event log.
type logSink struct {
	log logrus.FieldLogger
}

func (s *logSink) send(r record) {
	f := logrus.Fields{
		"event_id":    r.ID.String(),
		"pixels":      r.PixelCount,
		"sensitivity": r.Sensitivity,
	}
	if r.Box != nil {
		f["box"] = r.Box.String()
	}
	s.log.WithFields(f).Info("motion detected")
}

// bellSink rings the terminal bell, at most once per gap.
type bellSink struct {
	w    io.Writer
	gap  time.Duration
	last time.Time
}

func (s *bellSink) send(r record) {
	if !s.last.IsZero() && r.Timestamp.Sub(s.last) < s.gap {
		return
	}
	s.last = r.Timestamp
	s.w.Write([]byte{'\a'})
}

// wsHub streams events as JSON to connected websocket clients.
type wsHub struct {
	log      logrus.FieldLogger
	upgrader websocket.Upgrader

	lock    sync.RWMutex
	clients map[chan []byte]struct{}
}

func newWSHub(log logrus.FieldLogger) *wsHub {
	return &wsHub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[chan []byte]struct{}),
	}
}

func (h *wsHub) send(r record) {
	msg, err := json.Marshal(r)
	if err != nil {
		h.log.WithError(err).Error("encoding event")
		return
	}

	h.lock.RLock()
	defer h.lock.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *wsHub) subscribe() chan []byte {
	h.lock.Lock()
	defer h.lock.Unlock()
	ch := make(chan []byte, sinkQueue)
	h.clients[ch] = struct{}{}
	return ch
}

func (h *wsHub) unsubscribe(ch chan []byte) {
	h.lock.Lock()
	defer h.lock.Unlock()
	delete(h.clients, ch)
}

func (h *wsHub) count() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

func (h *wsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade")
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)
	h.log.WithField("remote", r.RemoteAddr).Info("event stream client connected")

	// the read side only exists to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

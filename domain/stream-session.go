package domain

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
)

var sessionLogger = logrus.WithField("component", "stream-session")

// StreamConn is one open duplex message stream. The session is the only
// writer; implementations own framing, TLS and handshake details.
type StreamConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateSubscribing
	StateStreaming
	StateReconnecting
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateSubscribing:
		return "Subscribing"
	case StateStreaming:
		return "Streaming"
	case StateReconnecting:
		return "Reconnecting"
	case StateClosed:
		return "Closed"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

type FrameKind int

const (
	FrameData FrameKind = iota + 1
	FrameAck
	FrameKeepAlive
	FrameSessionExpiry
	FrameIgnore
)

// Frame is one classified inbound message. Topic is set for FrameData and,
// where the vendor acks by request id, for FrameAck.
type Frame struct {
	Kind    FrameKind
	Topic   string
	Payload []byte
}

// SessionHooks is the vendor-specific half of a stream session: how to open
// a connection, how to spell topics and subscribe frames, and how to read
// inbound messages. One hooks instance belongs to exactly one session.
type SessionHooks interface {
	// Dial opens a fresh connection, including any side-channel token or
	// listen-key acquisition the vendor requires.
	Dial(ctx context.Context) (StreamConn, error)

	Topic(key SubscriptionKey) string
	SubscribeFrame(topic string) ([]byte, error)
	UnsubscribeFrame(topic string) ([]byte, error)
	Classify(raw []byte) Frame

	// AwaitAck reports whether the vendor acknowledges subscribe frames.
	// Without acks the session goes Streaming as soon as frames are flushed.
	AwaitAck() bool

	// PingFrame returns the vendor's application-level keepalive and its
	// cadence. A nil frame disables pings.
	PingFrame() ([]byte, time.Duration)
}

// SessionMetrics receives lifecycle observations. Implemented by
// infrastructure/prometheus; a nil metrics sink is valid.
type SessionMetrics interface {
	Reconnected(vendor string)
	LiveSubscriptions(vendor string, n int)
}

type SessionOption func(*StreamSession)

// WithBackoff bounds the reconnect delay. Jitter is always on.
func WithBackoff(min, max time.Duration) SessionOption {
	return func(s *StreamSession) {
		s.bo.Min = min
		s.bo.Max = max
	}
}

// WithReconnectBudget caps consecutive failed reconnects before the session
// fails terminally. Zero means unbounded.
func WithReconnectBudget(n int) SessionOption {
	return func(s *StreamSession) { s.reconnectBudget = n }
}

// WithLivenessTimeout reconnects when no inbound message of any kind arrives
// within d. Zero disables the check.
func WithLivenessTimeout(d time.Duration) SessionOption {
	return func(s *StreamSession) { s.livenessTimeout = d }
}

func WithMetrics(m SessionMetrics) SessionOption {
	return func(s *StreamSession) { s.metrics = m }
}

// WithSessionRefresh runs fn on a fixed cadence while connected, for vendors
// whose stream stays authorized only as long as a side-channel token is
// renewed. A failing refresh forces a reconnect, which re-acquires the token
// through Dial.
func WithSessionRefresh(fn func(ctx context.Context) error, interval time.Duration) SessionOption {
	return func(s *StreamSession) {
		s.refreshFn = fn
		s.refreshInterval = interval
	}
}

// WithSubscriberBuffer sets the per-subscriber channel depth. A subscriber
// that stops draining loses the oldest undelivered events rather than
// stalling the session.
func WithSubscriberBuffer(n int) SessionOption {
	return func(s *StreamSession) { s.subscriberBuffer = n }
}

const defaultSubscriberBuffer = 64

type subscriber struct {
	id int64
	ch chan []byte
}

type subscriptionEntry struct {
	key         SubscriptionKey
	topic       string
	subscribers []*subscriber
}

type sessionEvent struct {
	gen      uint64
	conn     StreamConn
	raw      []byte
	err      error
	kind     eventKind
}

type eventKind int

const (
	evDialed eventKind = iota + 1
	evFrame
	evReadError
	evReconnectDue
	evLivenessTimeout
	evPingDue
	evRefreshDue
)

// StreamSession is the reconnect/resubscribe state machine shared by every
// streaming adapter. All state transitions and subscription-set mutations run
// on one goroutine; callers talk to it through commands, never locks.
//
// The set of live subscription keys survives reconnects: every key live
// before a disconnect is resubscribed after the next successful handshake
// with no caller involvement. Events are delivered only while Streaming.
type StreamSession struct {
	vendor string
	hooks  SessionHooks
	log    *logrus.Entry

	cmds   chan func()
	events chan sessionEvent
	done   chan struct{}

	bo               *backoff.Backoff
	reconnectBudget  int
	livenessTimeout  time.Duration
	refreshFn        func(ctx context.Context) error
	refreshInterval  time.Duration
	metrics          SessionMetrics
	subscriberBuffer int

	// loop-owned state, never touched outside run()
	state         SessionState
	conn          StreamConn
	connStop      chan struct{}
	gen           uint64
	entries       map[string]*subscriptionEntry
	pendingOut    deque.Deque[[]byte]
	pendingAcks   map[string]struct{}
	attempts      int
	nextSubID     int64
	livenessTimer *time.Timer
	err           error

	stateMirror atomic.Int32
}

func NewStreamSession(vendor string, hooks SessionHooks, opts ...SessionOption) *StreamSession {
	s := &StreamSession{
		vendor: vendor,
		hooks:  hooks,
		log:    sessionLogger.WithField("vendor", vendor),
		cmds:   make(chan func()),
		events: make(chan sessionEvent, 16),
		done:   make(chan struct{}),
		bo: &backoff.Backoff{
			Min:    250 * time.Millisecond,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
		entries:          make(map[string]*subscriptionEntry),
		pendingAcks:      make(map[string]struct{}),
		subscriberBuffer: defaultSubscriberBuffer,
		state:            StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// State reports the last observed session state. Safe from any goroutine.
func (s *StreamSession) State() SessionState {
	return SessionState(s.stateMirror.Load())
}

// Done is closed once the session is terminally down.
func (s *StreamSession) Done() <-chan struct{} { return s.done }

// Err reports why the session terminated. Valid after Done is closed.
func (s *StreamSession) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Subscribe registers interest in key and returns a raw-payload subscription.
// Subscribing an already-live key sends no second frame to the vendor; each
// returned subscription still receives every inbound message exactly once.
func (s *StreamSession) Subscribe(key SubscriptionKey) (*Subscription[[]byte], error) {
	type result struct {
		sub *Subscription[[]byte]
		err error
	}
	reply := make(chan result, 1)

	cmd := func() {
		if s.state == StateClosed {
			reply <- result{err: fmt.Errorf("stream session for %s is closed", s.vendor)}
			return
		}
		topic := s.hooks.Topic(key)
		entry, live := s.entries[topic]

		// Build the frame before registering anything, so a frame error
		// leaves no orphaned entry behind. A key added before the connection
		// is up needs no frame here: the post-handshake replay subscribes
		// every live key exactly once.
		var frame []byte
		if !live && (s.state == StateSubscribing || s.state == StateStreaming) {
			f, err := s.hooks.SubscribeFrame(topic)
			if err != nil {
				reply <- result{err: err}
				return
			}
			frame = f
		}

		if !live {
			entry = &subscriptionEntry{key: key, topic: topic}
			s.entries[topic] = entry
		}
		s.nextSubID++
		sub := &subscriber{id: s.nextSubID, ch: make(chan []byte, s.subscriberBuffer)}
		entry.subscribers = append(entry.subscribers, sub)
		s.reportLiveKeys()

		// a nil frame means the vendor needs no explicit subscribe
		// (e.g. a listen-key stream that carries events implicitly)
		if frame != nil {
			if s.hooks.AwaitAck() {
				s.pendingAcks[topic] = struct{}{}
			}
			s.send(frame)
		}

		if s.state == StateDisconnected {
			s.startConnect()
		}

		id := sub.id
		reply <- result{sub: &Subscription[[]byte]{
			Stream:      sub.ch,
			Topic:       topic,
			Unsubscribe: func() { s.unsubscribe(topic, id) },
		}}
	}

	select {
	case s.cmds <- cmd:
	case <-s.done:
		if s.err != nil {
			return nil, fmt.Errorf("stream session for %s is closed: %w", s.vendor, s.err)
		}
		return nil, fmt.Errorf("stream session for %s is closed", s.vendor)
	}
	r := <-reply
	return r.sub, r.err
}

func (s *StreamSession) unsubscribe(topic string, subID int64) {
	doneCh := make(chan struct{})
	cmd := func() {
		defer close(doneCh)
		entry, ok := s.entries[topic]
		if !ok {
			return
		}
		for idx, sub := range entry.subscribers {
			if sub.id == subID {
				close(sub.ch)
				entry.subscribers = append(entry.subscribers[:idx], entry.subscribers[idx+1:]...)
				break
			}
		}
		if len(entry.subscribers) == 0 {
			delete(s.entries, topic)
			delete(s.pendingAcks, topic)
			if frame, err := s.hooks.UnsubscribeFrame(topic); err == nil && frame != nil {
				s.send(frame)
			}
		}
		s.reportLiveKeys()
	}
	select {
	case s.cmds <- cmd:
		<-doneCh
	case <-s.done:
	}
}

// Close terminates the session. All subscriber streams are closed and the
// transport is torn down.
func (s *StreamSession) Close() error {
	cmd := func() { s.terminate(nil) }
	select {
	case s.cmds <- cmd:
	case <-s.done:
	}
	<-s.done
	return nil
}

func (s *StreamSession) run() {
	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.cmds:
			cmd()
		case ev := <-s.events:
			if ev.gen != s.gen && ev.kind != evDialed {
				continue // stale timer or reader from a torn-down connection
			}
			s.handleEvent(ev)
		}
	}
}

func (s *StreamSession) handleEvent(ev sessionEvent) {
	switch ev.kind {
	case evDialed:
		s.onDialed(ev)
	case evFrame:
		s.resetLiveness()
		s.onFrame(ev.raw)
	case evReadError:
		s.log.WithError(ev.err).Warn("transport dropped")
		s.scheduleReconnect(ev.err)
	case evReconnectDue:
		s.startConnect()
	case evLivenessTimeout:
		s.log.Warn("liveness timeout, forcing reconnect")
		s.scheduleReconnect(fmt.Errorf("liveness timeout after %s", s.livenessTimeout))
	case evPingDue:
		if frame, _ := s.hooks.PingFrame(); frame != nil {
			s.send(frame)
		}
	case evRefreshDue:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.refreshFn(ctx)
		cancel()
		if err != nil {
			s.log.WithError(err).Warn("session refresh failed, forcing reconnect")
			s.scheduleReconnect(err)
		}
	}
}

func (s *StreamSession) startConnect() {
	if s.state == StateClosed {
		return
	}
	s.setState(StateConnecting)
	gen := s.gen
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		conn, err := s.hooks.Dial(ctx)
		s.post(sessionEvent{kind: evDialed, gen: gen, conn: conn, err: err})
	}()
}

func (s *StreamSession) onDialed(ev sessionEvent) {
	if s.state == StateClosed || ev.gen != s.gen {
		if ev.conn != nil {
			ev.conn.Close()
		}
		return
	}
	if ev.err != nil {
		if IsKind(ev.err, KindAuthenticationFailed) {
			s.terminate(ev.err)
			return
		}
		s.log.WithError(ev.err).Warn("dial failed")
		s.scheduleReconnect(ev.err)
		return
	}

	s.conn = ev.conn
	s.connStop = make(chan struct{})
	s.setState(StateSubscribing)
	s.attempts = 0
	s.bo.Reset()
	s.startReader()
	s.startTickers()
	s.resetLiveness()

	// replay the full live key set, oldest pending writes first
	s.pendingAcks = make(map[string]struct{})
	for topic := range s.entries {
		frame, err := s.hooks.SubscribeFrame(topic)
		if err != nil {
			s.log.WithError(err).WithField("topic", topic).Error("cannot build subscribe frame")
			continue
		}
		if frame == nil {
			continue
		}
		s.pendingOut.PushBack(frame)
		if s.hooks.AwaitAck() {
			s.pendingAcks[topic] = struct{}{}
		}
	}
	s.flushPending()

	// a failed flush has already torn the connection down and scheduled a
	// reconnect; only a still-subscribing session may go Streaming
	if s.state == StateSubscribing && (!s.hooks.AwaitAck() || len(s.pendingAcks) == 0) {
		s.setState(StateStreaming)
	}
}

func (s *StreamSession) onFrame(raw []byte) {
	frame := s.hooks.Classify(raw)
	switch frame.Kind {
	case FrameAck:
		delete(s.pendingAcks, frame.Topic)
		if s.state == StateSubscribing && len(s.pendingAcks) == 0 {
			s.setState(StateStreaming)
		}
	case FrameData:
		if s.state != StateStreaming {
			return
		}
		entry, ok := s.entries[frame.Topic]
		if !ok {
			return
		}
		for _, sub := range entry.subscribers {
			select {
			case sub.ch <- frame.Payload:
			default:
				// slow consumer: shed the oldest event, keep the stream live
				select {
				case <-sub.ch:
				default:
				}
				select {
				case sub.ch <- frame.Payload:
				default:
				}
			}
		}
	case FrameSessionExpiry:
		s.log.Warn("vendor announced session expiry")
		s.scheduleReconnect(fmt.Errorf("session expired by vendor"))
	case FrameKeepAlive, FrameIgnore:
	}
}

func (s *StreamSession) scheduleReconnect(cause error) {
	if s.state == StateClosed || s.state == StateReconnecting {
		return
	}
	s.teardownConn()
	s.attempts++
	if s.reconnectBudget > 0 && s.attempts > s.reconnectBudget {
		s.terminate(fmt.Errorf("reconnect budget of %d exhausted: %w", s.reconnectBudget, cause))
		return
	}
	s.setState(StateReconnecting)
	if s.metrics != nil {
		s.metrics.Reconnected(s.vendor)
	}
	delay := s.bo.Duration()
	s.log.WithFields(logrus.Fields{"attempt": s.attempts, "delay": delay}).Info("reconnecting")
	gen := s.gen
	time.AfterFunc(delay, func() {
		s.post(sessionEvent{kind: evReconnectDue, gen: gen})
	})
}

func (s *StreamSession) terminate(cause error) {
	if s.state == StateClosed {
		return
	}
	s.teardownConn()
	s.setState(StateClosed)
	s.err = cause
	for topic, entry := range s.entries {
		for _, sub := range entry.subscribers {
			close(sub.ch)
		}
		delete(s.entries, topic)
	}
	s.reportLiveKeys()
	if cause != nil {
		s.log.WithError(cause).Error("session terminated")
	}
	close(s.done)
}

// send writes immediately when the connection is writable and queues the
// frame for the next handshake otherwise.
func (s *StreamSession) send(frame []byte) {
	if s.conn != nil && (s.state == StateSubscribing || s.state == StateStreaming) {
		if err := s.conn.WriteMessage(frame); err != nil {
			s.log.WithError(err).Warn("write failed")
			s.scheduleReconnect(err)
		}
		return
	}
	s.pendingOut.PushBack(frame)
}

func (s *StreamSession) flushPending() {
	for s.pendingOut.Len() > 0 {
		frame := s.pendingOut.PopFront()
		if err := s.conn.WriteMessage(frame); err != nil {
			s.pendingOut.PushFront(frame)
			s.scheduleReconnect(err)
			return
		}
	}
}

func (s *StreamSession) startReader() {
	gen := s.gen
	conn := s.conn
	go func() {
		for {
			raw, err := conn.ReadMessage()
			if err != nil {
				s.post(sessionEvent{kind: evReadError, gen: gen, err: err})
				return
			}
			s.post(sessionEvent{kind: evFrame, gen: gen, raw: raw})
		}
	}()
}

func (s *StreamSession) startTickers() {
	gen := s.gen
	stop := s.connStop
	if frame, interval := s.hooks.PingFrame(); frame != nil && interval > 0 {
		go s.tick(stop, gen, interval, evPingDue)
	}
	if s.refreshFn != nil && s.refreshInterval > 0 {
		go s.tick(stop, gen, s.refreshInterval, evRefreshDue)
	}
}

// tick belongs to one connection: teardownConn closes stop, so tickers never
// outlive the connection they were started for.
func (s *StreamSession) tick(stop <-chan struct{}, gen uint64, interval time.Duration, kind eventKind) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-s.done:
			return
		case <-t.C:
			if !s.post(sessionEvent{kind: kind, gen: gen}) {
				return
			}
		}
	}
}

func (s *StreamSession) resetLiveness() {
	if s.livenessTimeout <= 0 {
		return
	}
	if s.livenessTimer != nil {
		s.livenessTimer.Stop()
	}
	gen := s.gen
	s.livenessTimer = time.AfterFunc(s.livenessTimeout, func() {
		s.post(sessionEvent{kind: evLivenessTimeout, gen: gen})
	})
}

func (s *StreamSession) teardownConn() {
	s.gen++
	// queued frames belong to the dead connection; the replay after the next
	// handshake reconstructs the desired subscription state from scratch
	s.pendingOut.Clear()
	if s.livenessTimer != nil {
		s.livenessTimer.Stop()
		s.livenessTimer = nil
	}
	if s.connStop != nil {
		close(s.connStop)
		s.connStop = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *StreamSession) post(ev sessionEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *StreamSession) setState(st SessionState) {
	if s.state == st {
		return
	}
	s.log.WithFields(logrus.Fields{"from": s.state, "to": st}).Debug("state transition")
	s.state = st
	s.stateMirror.Store(int32(st))
}

func (s *StreamSession) reportLiveKeys() {
	if s.metrics != nil {
		s.metrics.LiveSubscriptions(s.vendor, len(s.entries))
	}
}

package viewer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/insta-stories-viewer/internal/domain"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
)

type Options struct {
	Clock                clockwork.Clock
	Scheduler            Scheduler
	DefaultImageDuration time.Duration
	ProgressInterval     time.Duration
	Logger               logger.Logger
}

// Machine is one viewer. All transitions are serialized on mu; subscribers
// are notified after mu is released, so they may call back into the machine.
type Machine struct {
	clock            clockwork.Clock
	scheduler        Scheduler
	defaultDuration  time.Duration
	progressInterval time.Duration
	logger           logger.Logger

	mu       sync.Mutex
	state    State
	stories  []domain.Story
	index    int
	session  uint64
	epoch    uint64
	seq      uint64
	progress float64
	measured time.Duration
	failed   bool

	// remaining is the carry-over stored on pause and consumed on the next
	// arm. resume marks it valid even when it is zero.
	remaining time.Duration
	resume    bool
	full      time.Duration
	base      time.Duration
	armedAt   time.Time

	advanceCancel Cancel
	samplerCancel Cancel

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

func New(opts Options) *Machine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewClockScheduler(opts.Clock)
	}
	if opts.DefaultImageDuration <= 0 {
		opts.DefaultImageDuration = domain.DefaultImageDuration
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Machine{
		clock:            opts.Clock,
		scheduler:        opts.Scheduler,
		defaultDuration:  opts.DefaultImageDuration,
		progressInterval: opts.ProgressInterval,
		logger:           opts.Logger.WithComponent("Viewer"),
		index:            -1,
		subs:             make(map[int]func(Event)),
	}
}

// Subscribe registers fn for every event and returns a function removing it.
func (m *Machine) Subscribe(fn func(Event)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

// outcome collects what a transition has to publish once mu is released.
type outcome struct {
	events    []Event
	exhausted bool
	session   uint64
}

func (m *Machine) finish(out outcome) {
	m.emit(out.events)
	if !out.exhausted {
		return
	}

	m.mu.Lock()
	if m.session != out.session || m.state != StateClosed {
		m.mu.Unlock()
		return
	}
	ev := m.eventLocked(EventClosed)
	m.mu.Unlock()
	m.emit([]Event{ev})
}

func (m *Machine) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	m.subMu.Lock()
	subs := make([]func(Event), 0, len(m.subs))
	for i := 0; i < m.nextSub; i++ {
		if fn, ok := m.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	m.subMu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// Open starts a session on stories at start and marks that story active.
func (m *Machine) Open(stories []domain.Story, start int) error {
	if len(stories) == 0 {
		return ErrEmptySequence
	}
	if start < 0 || start >= len(stories) {
		return ErrIndexOutOfRange
	}

	m.mu.Lock()
	m.cancelTimersLocked()
	m.session++
	m.stories = append([]domain.Story(nil), stories...)
	m.index = start
	m.remaining = 0
	m.resume = false
	m.enterLoadingLocked()
	m.logger.Debug("Viewer opened", "session", m.session, "stories", len(stories), "start", start)
	out := outcome{events: []Event{m.eventLocked(EventIndexChanged)}}
	m.mu.Unlock()

	m.finish(out)
	return nil
}

// MediaReady reports that the active story's media can play. measured is the
// media's own duration (videos); pass zero for images.
func (m *Machine) MediaReady(measured time.Duration) {
	m.mu.Lock()
	if m.state != StateLoading {
		m.mu.Unlock()
		return
	}
	m.measured = measured
	out := m.startLocked()
	m.mu.Unlock()
	m.finish(out)
}

// MediaError clears the load gate as if the media had loaded. A failed video
// never reports its end, so it plays out on the image timer instead.
func (m *Machine) MediaError() {
	m.mu.Lock()
	if m.state != StateLoading {
		m.mu.Unlock()
		return
	}
	m.failed = true
	m.logger.Warn("Media failed to load", "story_id", m.currentLocked().ID)
	out := m.startLocked()
	m.mu.Unlock()
	m.finish(out)
}

func (m *Machine) startLocked() outcome {
	m.state = StatePlaying
	m.progress = 0
	m.remaining = 0
	m.resume = false
	m.armLocked()
	return outcome{events: []Event{m.eventLocked(EventStateChanged)}}
}

// timedLocked reports whether the active story advances on a timer.
func (m *Machine) timedLocked() bool {
	s := m.currentLocked()
	return s.IsImage() || m.failed
}

// armLocked starts the advance timer and progress sampler for a timed story,
// using the stored remaining duration when one is pending.
func (m *Machine) armLocked() {
	m.cancelTimersLocked()
	if !m.timedLocked() {
		return
	}

	s := m.currentLocked()
	if s.IsImage() {
		m.full = s.DisplayDuration(m.defaultDuration)
	} else {
		m.full = m.defaultDuration
	}
	armed := m.full
	if m.resume {
		armed = m.remaining
	}
	m.remaining = 0
	m.resume = false
	m.base = m.full - armed
	m.armedAt = m.clock.Now()

	epoch := m.epoch
	m.advanceCancel = m.scheduler.AfterFunc(armed, func() { m.onAdvanceTimer(epoch) })
	m.samplerCancel = m.scheduler.Every(m.progressInterval, func() { m.onSample(epoch) })
}

func (m *Machine) cancelTimersLocked() {
	m.epoch++
	if m.advanceCancel != nil {
		m.advanceCancel()
		m.advanceCancel = nil
	}
	if m.samplerCancel != nil {
		m.samplerCancel()
		m.samplerCancel = nil
	}
}

func (m *Machine) sampleLocked() float64 {
	if m.full <= 0 {
		return 100
	}
	elapsed := m.base + m.clock.Since(m.armedAt)
	return min(float64(elapsed)/float64(m.full)*100, 100)
}

func (m *Machine) onSample(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.state != StatePlaying {
		m.mu.Unlock()
		return
	}
	m.progress = m.sampleLocked()
	if m.progress >= 100 && m.samplerCancel != nil {
		m.samplerCancel()
		m.samplerCancel = nil
	}
	out := outcome{events: []Event{m.eventLocked(EventProgress)}}
	m.mu.Unlock()
	m.finish(out)
}

func (m *Machine) onAdvanceTimer(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.state != StatePlaying {
		m.mu.Unlock()
		return
	}
	m.progress = 100
	out := outcome{events: []Event{m.eventLocked(EventProgress)}}
	next := m.moveLocked(m.index + 1)
	out.events = append(out.events, next.events...)
	out.exhausted, out.session = next.exhausted, next.session
	m.mu.Unlock()
	m.finish(out)
}

// PressStart pauses playback. Images keep the unplayed part of their
// duration for the next arm.
func (m *Machine) PressStart() {
	m.mu.Lock()
	if m.state != StatePlaying {
		m.mu.Unlock()
		return
	}
	if m.timedLocked() {
		m.progress = m.sampleLocked()
		m.remaining = max(time.Duration(float64(m.full)*(1-m.progress/100)), 0)
		m.resume = true
	}
	m.cancelTimersLocked()
	m.state = StatePaused
	out := outcome{events: []Event{m.eventLocked(EventStateChanged)}}
	m.mu.Unlock()
	m.finish(out)
}

// PressEnd resumes a paused story.
func (m *Machine) PressEnd() {
	m.mu.Lock()
	if m.state != StatePaused {
		m.mu.Unlock()
		return
	}
	m.state = StatePlaying
	m.armLocked()
	out := outcome{events: []Event{m.eventLocked(EventStateChanged)}}
	m.mu.Unlock()
	m.finish(out)
}

// VideoProgress reports the playback position of the active video.
func (m *Machine) VideoProgress(position, total time.Duration) {
	m.mu.Lock()
	if m.state != StatePlaying || m.timedLocked() || total <= 0 {
		m.mu.Unlock()
		return
	}
	m.measured = total
	m.progress = min(max(float64(position)/float64(total)*100, 0), 100)
	out := outcome{events: []Event{m.eventLocked(EventProgress)}}
	m.mu.Unlock()
	m.finish(out)
}

// MediaEnded advances past a video that finished playing. It is ignored while
// paused or loading.
func (m *Machine) MediaEnded() {
	m.mu.Lock()
	if m.state != StatePlaying || !m.currentLocked().IsVideo() || m.failed {
		m.mu.Unlock()
		return
	}
	m.progress = 100
	out := m.moveLocked(m.index + 1)
	m.mu.Unlock()
	m.finish(out)
}

func (m *Machine) Next() { m.navigate(func(i int) int { return i + 1 }, false) }
func (m *Machine) Prev() { m.navigate(func(i int) int { return i - 1 }, false) }

// TapRight and TapLeft are the on-screen next/previous zones. They do nothing
// until the media has loaded.
func (m *Machine) TapRight() { m.navigate(func(i int) int { return i + 1 }, true) }
func (m *Machine) TapLeft()  { m.navigate(func(i int) int { return i - 1 }, true) }

// Navigate moves to index. Past the end exhausts the sequence; below zero
// closes the session.
func (m *Machine) Navigate(index int) {
	m.navigate(func(int) int { return index }, false)
}

func (m *Machine) navigate(target func(int) int, needLoaded bool) {
	m.mu.Lock()
	if m.state == StateClosed || (needLoaded && m.state == StateLoading) {
		m.mu.Unlock()
		return
	}
	to := target(m.index)
	if to == m.index {
		m.mu.Unlock()
		return
	}
	out := m.moveLocked(to)
	m.mu.Unlock()
	m.finish(out)
}

// moveLocked leaves the active story for index to.
func (m *Machine) moveLocked(to int) outcome {
	m.cancelTimersLocked()
	m.remaining = 0
	m.resume = false

	switch {
	case to < 0:
		m.logger.Debug("Viewer closed at start of sequence", "session", m.session)
		return outcome{events: []Event{m.closeLocked()}}
	case to >= len(m.stories):
		m.progress = 100
		ev := m.eventLocked(EventExhausted)
		m.logger.Debug("Viewer sequence exhausted", "session", m.session)
		m.resetLocked()
		return outcome{events: []Event{ev}, exhausted: true, session: m.session}
	default:
		m.index = to
		m.enterLoadingLocked()
		return outcome{events: []Event{m.eventLocked(EventIndexChanged)}}
	}
}

// Close ends the session from any state.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.cancelTimersLocked()
	out := outcome{events: []Event{m.closeLocked()}}
	m.mu.Unlock()
	m.finish(out)
}

func (m *Machine) closeLocked() Event {
	m.resetLocked()
	return m.eventLocked(EventClosed)
}

func (m *Machine) resetLocked() {
	m.state = StateClosed
	m.stories = nil
	m.index = -1
	m.progress = 0
	m.measured = 0
	m.remaining = 0
	m.resume = false
	m.failed = false
}

func (m *Machine) enterLoadingLocked() {
	m.state = StateLoading
	m.progress = 0
	m.measured = 0
	m.failed = false
}

func (m *Machine) currentLocked() domain.Story {
	if m.index < 0 || m.index >= len(m.stories) {
		return domain.Story{}
	}
	return m.stories[m.index]
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:       m.state,
		Index:       m.index,
		Total:       len(m.stories),
		Progress:    m.progress,
		Loading:     m.state == StateLoading,
		Paused:      m.state == StatePaused,
		MeasuredMs:  m.measured.Milliseconds(),
		RemainingMs: m.remaining.Milliseconds(),
		Segments:    make([]float64, len(m.stories)),
	}
	if m.index >= 0 && m.index < len(m.stories) {
		s := m.stories[m.index]
		snap.Story = &s
	}
	for i := range m.stories {
		switch {
		case i < m.index:
			snap.Segments[i] = 100
		case i == m.index:
			snap.Segments[i] = m.progress
		}
	}
	return snap
}

func (m *Machine) eventLocked(kind EventKind) Event {
	m.seq++
	return Event{
		Kind:     kind,
		Seq:      m.seq,
		Session:  m.session,
		Snapshot: m.snapshotLocked(),
	}
}

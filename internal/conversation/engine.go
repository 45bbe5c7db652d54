package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/pitchline/internal/identity"
	"github.com/tOgg1/pitchline/internal/logging"
	"github.com/tOgg1/pitchline/internal/models"
)

// Session errors.
var (
	ErrSessionActive = errors.New("conversation session already open")
	ErrSessionClosed = errors.New("conversation session not open")
)

const defaultSendTimeout = 15 * time.Second

// Config tunes an Engine.
type Config struct {
	// PollInterval is the refetch cadence while open.
	// Default: 5s
	PollInterval time.Duration

	// MatchTolerance bounds the timestamp drift between an optimistic message
	// and the confirmed message that supersedes it.
	// Default: 10s
	MatchTolerance time.Duration

	// ScrollThreshold is the bottom tolerance of the scroll policy, in rows.
	// Default: 2
	ScrollThreshold int

	// SendTimeout caps one persist request.
	// Default: 15s
	SendTimeout time.Duration

	// Location is the viewer's zone for date grouping. Nil means time.Local.
	Location *time.Location
}

// DefaultConfig returns the reference cadence and tolerances.
func DefaultConfig() Config {
	return Config{
		PollInterval:    DefaultPollInterval,
		MatchTolerance:  DefaultMatchTolerance,
		ScrollThreshold: DefaultScrollThreshold,
		SendTimeout:     defaultSendTimeout,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver routes fetch/send outcomes to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithClock replaces time.Now for optimistic timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator replaces the optimistic id generator.
func WithIDGenerator(gen func(time.Time) string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// Snapshot is the conversation view state after one transition.
type Snapshot struct {
	Pair      identity.Pair
	Canonical []models.Message
	Groups    []models.Group
	// Follow mirrors the scroll policy: true while auto-following.
	Follow bool
	// Jump asks the view to scroll to the newest message.
	Jump bool
	// Loading is true until the first fetch of the session completes.
	Loading bool
	// Pending counts optimistic messages not yet confirmed.
	Pending int
	// Failed holds ids of optimistic messages whose persist request failed.
	Failed  map[string]bool
	Err     error
	Version uint64
}

// IsFailed reports whether the optimistic message id failed to persist.
func (s Snapshot) IsFailed(id string) bool {
	return s.Failed[id]
}

// Engine owns the state of one conversation view. Every input is applied as
// one atomic transition under a single lock, in arrival order, and each
// transition publishes a Snapshot.
type Engine struct {
	cfg      Config
	backend  Backend
	fetcher  *Fetcher
	ids      identity.Provider
	observer Observer
	now      func() time.Time
	newID    func(time.Time) string
	logger   zerolog.Logger

	mu        sync.Mutex
	gen       uint64
	pair      identity.Pair
	session   *PollSession
	confirmed []models.Message
	pending   []models.Message
	failed    map[string]bool
	canonical []models.Message
	groups    []models.Group
	scroll    *ScrollPolicy
	loaded    bool
	lastErr   error
	version   uint64

	// fetchSeq numbers fetches as they are issued; appliedSeq is the newest
	// one whose result reached the state.
	fetchSeq   uint64
	appliedSeq uint64

	inflight int
	idle     chan struct{}
	updates  chan Snapshot
}

// New creates an engine. Nothing is fetched until Open.
func New(cfg Config, backend Backend, ids identity.Provider, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MatchTolerance <= 0 {
		cfg.MatchTolerance = def.MatchTolerance
	}
	if cfg.ScrollThreshold <= 0 {
		cfg.ScrollThreshold = def.ScrollThreshold
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}

	e := &Engine{
		cfg:      cfg,
		backend:  backend,
		fetcher:  NewFetcher(backend),
		ids:      ids,
		observer: NopObserver{},
		now:      time.Now,
		newID:    optimisticID,
		logger:   logging.Component("conversation"),
		failed:   make(map[string]bool),
		scroll:   NewScrollPolicy(cfg.ScrollThreshold),
		updates:  make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pair = e.currentIdentity()
	return e
}

// optimisticID is time-ordered and collision resistant.
func optimisticID(time.Time) string {
	id, err := uuid.NewV7()
	if err != nil {
		return "local-" + uuid.NewString()
	}
	return "local-" + id.String()
}

// Updates delivers snapshots. Only the latest unread snapshot is kept; a
// pending Jump survives being replaced.
func (e *Engine) Updates() <-chan Snapshot {
	return e.updates
}

// Snapshot returns the current state without a Jump.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Identity returns the pair the current state belongs to.
func (e *Engine) Identity() identity.Pair {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pair
}

// IsOpen reports whether a poll session is live.
func (e *Engine) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// Open starts a fresh view state and its poll session: one fetch now, then
// one per PollInterval until Close or ctx ends.
func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return ErrSessionActive
	}

	e.gen++
	e.pair = e.currentIdentity()
	e.resetLocked()
	e.publishLocked(false)
	e.session = startPollSession(ctx, e.cfg.PollInterval, e.fetch)

	e.logger.Debug().
		Str("pair", e.pair.String()).
		Dur("poll_interval", e.cfg.PollInterval).
		Msg("conversation opened")
	return nil
}

// Close tears the poll session down. Responses still in flight are dropped
// when they land.
func (e *Engine) Close() error {
	e.mu.Lock()
	session := e.session
	if session == nil {
		e.mu.Unlock()
		return ErrSessionClosed
	}
	e.session = nil
	e.gen++
	e.mu.Unlock()

	session.Stop()
	e.logger.Debug().Msg("conversation closed")
	return nil
}

// Drain waits until no fetch or persist request is in flight. Work started
// while draining extends the wait.
func (e *Engine) Drain(ctx context.Context) error {
	for {
		e.mu.Lock()
		if e.inflight == 0 {
			e.mu.Unlock()
			return nil
		}
		idle := e.idle
		e.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) beginTaskLocked() {
	if e.inflight == 0 {
		e.idle = make(chan struct{})
	}
	e.inflight++
}

func (e *Engine) endTask() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight--
	if e.inflight == 0 {
		close(e.idle)
	}
}

// Refresh runs one fetch outside the schedule.
func (e *Engine) Refresh() error {
	e.mu.Lock()
	session := e.session
	if session == nil {
		e.mu.Unlock()
		return ErrSessionClosed
	}
	e.beginTaskLocked()
	e.mu.Unlock()

	go func() {
		defer e.endTask()
		e.fetch(session.Context())
	}()
	return nil
}

// SendMessage materializes content as an optimistic message right away and
// persists it in the background. It returns false, changing nothing, for
// blank content or an unready identity. A true return means the message is
// in the state and the compose input may be cleared.
func (e *Engine) SendMessage(content string) bool {
	text := strings.TrimSpace(content)
	if text == "" {
		return false
	}

	e.mu.Lock()
	e.syncIdentityLocked()
	pair := e.pair
	if !pair.Ready() {
		e.mu.Unlock()
		return false
	}

	now := e.now()
	msg := models.Message{
		ID:        e.newID(now),
		Sender:    pair.Sender,
		Receiver:  pair.Receiver,
		Content:   text,
		CreatedAt: now,
		Origin:    models.OriginOptimistic,
	}
	e.pending = append(e.pending, msg)
	jump := e.scroll.OnSend() == ActionJumpToBottom
	e.recomputeLocked(jump)
	gen := e.gen
	e.beginTaskLocked()
	e.mu.Unlock()

	go e.persist(gen, pair, msg)
	return true
}

// Scroll feeds a viewport scroll event to the scroll policy.
func (e *Engine) Scroll(v Viewport) ScrollMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.scroll.Mode()
	mode := e.scroll.OnScroll(v)
	if mode != prev {
		e.publishLocked(false)
	}
	return mode
}

// fetch applies a result only while the identity and generation it was
// issued under are current and no later-issued fetch has been applied.
func (e *Engine) fetch(ctx context.Context) {
	e.mu.Lock()
	e.syncIdentityLocked()
	gen, pair := e.gen, e.pair
	if !pair.Ready() {
		e.mu.Unlock()
		return
	}
	e.fetchSeq++
	seq := e.fetchSeq
	e.beginTaskLocked()
	e.mu.Unlock()
	defer e.endTask()

	start := e.now()
	msgs, err := e.fetcher.Fetch(ctx, pair)
	took := e.now().Sub(start)

	e.mu.Lock()
	e.syncIdentityLocked()
	if gen != e.gen || seq <= e.appliedSeq {
		applied := e.appliedSeq
		e.mu.Unlock()
		e.logger.Debug().
			Str("pair", pair.String()).
			Uint64("seq", seq).
			Uint64("applied_seq", applied).
			Msg("dropping stale fetch result")
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			e.mu.Unlock()
			return
		}
		e.appliedSeq = seq
		e.loaded = true
		e.lastErr = err
		e.publishLocked(false)
		e.mu.Unlock()
		e.observer.FetchFailed(pair, err)
		return
	}
	e.appliedSeq = seq
	e.confirmed = msgs
	e.loaded = true
	e.lastErr = nil
	e.recomputeLocked(false)
	e.mu.Unlock()
	e.observer.FetchSucceeded(pair, len(msgs), took)
}

func (e *Engine) persist(gen uint64, pair identity.Pair, msg models.Message) {
	defer e.endTask()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SendTimeout)
	defer cancel()

	start := e.now()
	err := e.backend.Send(ctx, pair.Sender, pair.Receiver, msg.Content)
	took := e.now().Sub(start)

	e.mu.Lock()
	stale := gen != e.gen
	if err != nil && !stale {
		if containsID(e.pending, msg.ID) {
			e.failed[msg.ID] = true
		}
		e.lastErr = err
		e.publishLocked(false)
	}
	session := e.session
	e.mu.Unlock()

	if err != nil {
		e.observer.SendFailed(pair, msg, err)
		return
	}
	e.observer.MessageSent(pair, msg, took)
	// without a session nothing is shown, so the confirmation waits for Open
	if stale || session == nil {
		return
	}

	fetchCtx, cancelFetch := context.WithTimeout(session.Context(), e.cfg.SendTimeout)
	defer cancelFetch()
	e.fetch(fetchCtx)
}

// syncIdentityLocked resets the view when the provider reports a different
// pair, invalidating responses issued for the old one.
func (e *Engine) syncIdentityLocked() {
	cur := e.currentIdentity()
	if cur == e.pair {
		return
	}
	e.logger.Info().
		Str("from", e.pair.String()).
		Str("to", cur.String()).
		Msg("conversation identity changed")
	e.pair = cur
	e.gen++
	e.resetLocked()
	e.publishLocked(false)
}

func (e *Engine) currentIdentity() identity.Pair {
	if e.ids == nil {
		return identity.Pair{}
	}
	return e.ids.Identity().Normalize()
}

func (e *Engine) resetLocked() {
	e.confirmed = nil
	e.pending = nil
	e.failed = make(map[string]bool)
	e.canonical = nil
	e.groups = nil
	e.loaded = false
	e.lastErr = nil
	e.scroll.Reset()
}

func (e *Engine) recomputeLocked(jump bool) {
	canonical, outstanding := Reconcile(e.confirmed, e.pending, e.cfg.MatchTolerance)
	e.pending = outstanding
	for id := range e.failed {
		if !containsID(outstanding, id) {
			delete(e.failed, id)
		}
	}
	e.canonical = canonical
	e.groups = GroupByDay(canonical, e.cfg.Location)
	if e.scroll.OnCount(len(canonical)) == ActionJumpToBottom {
		jump = true
	}
	e.publishLocked(jump)
}

func (e *Engine) publishLocked(jump bool) {
	e.version++
	snap := e.snapshotLocked()
	snap.Jump = jump

	select {
	case prev := <-e.updates:
		snap.Jump = snap.Jump || prev.Jump
	default:
	}
	select {
	case e.updates <- snap:
	default:
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	failed := make(map[string]bool, len(e.failed))
	for id := range e.failed {
		failed[id] = true
	}
	return Snapshot{
		Pair:      e.pair,
		Canonical: append([]models.Message(nil), e.canonical...),
		Groups:    cloneGroups(e.groups),
		Follow:    e.scroll.Mode() == Following,
		Loading:   !e.loaded,
		Pending:   len(e.pending),
		Failed:    failed,
		Err:       e.lastErr,
		Version:   e.version,
	}
}

func cloneGroups(groups []models.Group) []models.Group {
	if groups == nil {
		return nil
	}
	out := make([]models.Group, len(groups))
	for i, g := range groups {
		out[i] = models.Group{Date: g.Date, Messages: append([]models.Message(nil), g.Messages...)}
	}
	return out
}

func containsID(msgs []models.Message, id string) bool {
	for i := range msgs {
		if msgs[i].ID == id {
			return true
		}
	}
	return false
}

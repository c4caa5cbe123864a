package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/angelmondragon/engagement-dashboard/internal/apiclient"
	"github.com/angelmondragon/engagement-dashboard/internal/engagements"
	"github.com/angelmondragon/engagement-dashboard/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUploadInFlight = errors.New("upload already in progress")
	// ErrStale reports a resolution that was dropped because a newer load or a cancellation superseded it.
	ErrStale  = errors.New("response superseded by a newer request")
	ErrClosed = errors.New("dashboard controller torn down")
)

const (
	defaultSuccessTTL = 3 * time.Second
	defaultErrorTTL   = 5 * time.Second

	unknownErrorCode = "UNKNOWN_ERROR"
	uploadErrorCode  = "UPLOAD_ERROR"
)

// API is the slice of the request client the controller drives.
type API interface {
	GetEngagements(ctx context.Context, criteria engagements.Criteria) (*apiclient.Result[engagements.ListResult], error)
	AnalyticsSummary(ctx context.Context) (*apiclient.Result[engagements.OverviewSummary], error)
	UploadCSV(ctx context.Context, filename string, r io.Reader) (*apiclient.Result[engagements.UploadResult], error)
	ClearUploaded(ctx context.Context) (*apiclient.Result[engagements.ClearResult], error)
	CancelAll()
	IsCurrent(gen uint64) bool
}

// Timer is the handle returned by Options.AfterFunc.
type Timer interface {
	Stop() bool
}

type Options struct {
	Logger       *logger.Logger
	DefaultLimit int
	SuccessTTL   time.Duration
	ErrorTTL     time.Duration
	Now          func() time.Time
	NewID        func() string
	// AfterFunc schedules notification expiry; defaults to time.AfterFunc.
	AfterFunc func(time.Duration, func()) Timer
}

// Controller is the single writer of dashboard State. Every mutation goes through reduce.
type Controller struct {
	api        API
	logg       *logger.Logger
	now        func() time.Time
	newID      func() string
	afterFunc  func(time.Duration, func()) Timer
	successTTL time.Duration
	errorTTL   time.Duration
	limit      int

	mu        sync.Mutex
	state     State
	seq       uint64
	uploading bool
	closed    bool
	timers    map[string]Timer
	listeners map[int]func(State)
	nextSub   int
}

func NewController(api API, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = engagements.DefaultLimit
	}
	if opts.SuccessTTL <= 0 {
		opts.SuccessTTL = defaultSuccessTTL
	}
	if opts.ErrorTTL <= 0 {
		opts.ErrorTTL = defaultErrorTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }
	}
	return &Controller{
		api:        api,
		logg:       opts.Logger,
		now:        opts.Now,
		newID:      opts.NewID,
		afterFunc:  opts.AfterFunc,
		successTTL: opts.SuccessTTL,
		errorTTL:   opts.ErrorTTL,
		limit:      opts.DefaultLimit,
		state:      initialState(opts.DefaultLimit),
		timers:     map[string]Timer{},
		listeners:  map[int]func(State){},
	}
}

// State returns a snapshot safe to retain.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn for every state change and returns its unsubscribe func.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Load fetches engagements for criteria without touching the stored filters.
func (c *Controller) Load(ctx context.Context, criteria engagements.Criteria) error {
	seq, _, err := c.begin(loadRequested{message: loadingEngagementsMessage})
	if err != nil {
		return err
	}
	return c.fetch(ctx, seq, criteria)
}

// ApplyFilters replaces the current filters with criteria and reloads. Dimensions left
// unset in criteria are cleared; a zero Limit takes the default.
func (c *Controller) ApplyFilters(ctx context.Context, criteria engagements.Criteria) error {
	if criteria.Limit <= 0 {
		criteria.Limit = c.limit
	}
	seq, snapshot, err := c.begin(filtersApplied{criteria: criteria})
	if err != nil {
		return err
	}
	return c.fetch(ctx, seq, snapshot.Filters)
}

// ResetFilters drops every constraint and reloads with the default limit.
func (c *Controller) ResetFilters(ctx context.Context) error {
	return c.ApplyFilters(ctx, engagements.Criteria{})
}

// Refresh reloads using the current filters.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.Load(ctx, c.State().Filters)
}

// Upload sends a CSV and reloads on success. Only one upload may run at a time.
func (c *Controller) Upload(ctx context.Context, filename string, r io.Reader) (*engagements.UploadResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.uploading {
		c.mu.Unlock()
		return nil, ErrUploadInFlight
	}
	c.uploading = true
	// loads already in flight would land under the upload spinner
	c.seq++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.uploading = false
		c.mu.Unlock()
	}()

	c.dispatch(uploadStarted{})
	ctx = c.logg.WithField(ctx, "filename", filename)

	res, err := c.api.UploadCSV(ctx, filename, r)
	if err != nil {
		if c.isClosed() {
			return nil, ErrClosed
		}
		state := c.errorState(err, uploadErrorCode)
		c.logg.Warn(c.logg.WithField(ctx, "error_code", state.Code), "dashboard.upload.failed")
		c.dispatch(uploadFailed{err: state})
		c.AddNotification(Notification{Kind: NotificationError, Title: "Failed to upload CSV", Message: state.Message})
		return nil, err
	}
	if !c.api.IsCurrent(res.Generation) {
		c.dispatch(uploadAbandoned{})
		return nil, ErrStale
	}

	c.dispatch(uploadSucceeded{})
	c.logg.Info(c.logg.WithField(ctx, "processed", res.Value.Processed), "dashboard.upload.succeeded")
	c.AddNotification(Notification{
		Kind:    NotificationSuccess,
		Title:   "CSV uploaded successfully",
		Message: fmt.Sprintf("Processed %d records", res.Value.Processed),
	})

	result := res.Value
	return &result, c.Refresh(ctx)
}

// ClearUploaded drops the server's uploaded set and reloads whatever serves next.
func (c *Controller) ClearUploaded(ctx context.Context) (*engagements.ClearResult, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	res, err := c.api.ClearUploaded(ctx)
	if err != nil {
		if c.isClosed() {
			return nil, ErrClosed
		}
		state := c.errorState(err, unknownErrorCode)
		c.AddNotification(Notification{Kind: NotificationError, Title: "Failed to clear uploaded data", Message: state.Message})
		return nil, err
	}
	if !c.api.IsCurrent(res.Generation) {
		return nil, ErrStale
	}
	c.AddNotification(Notification{Kind: NotificationInfo, Title: "Uploaded data cleared", Message: res.Value.Message})

	result := res.Value
	return &result, c.Refresh(ctx)
}

// ClearError dismisses an errored state back to idle. It never retries.
func (c *Controller) ClearError() {
	c.dispatch(errorCleared{})
}

// AddNotification stamps n with an id and timestamp and schedules its expiry. A zero
// Duration takes the kind's default; a negative one is sticky.
func (c *Controller) AddNotification(n Notification) string {
	n.ID = c.newID()
	n.Timestamp = c.now().UTC()
	if n.Kind == "" {
		n.Kind = NotificationInfo
	}
	if n.Duration == 0 {
		n.Duration = c.successTTL
		if n.Kind == NotificationError || n.Kind == NotificationWarning {
			n.Duration = c.errorTTL
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ""
	}
	if n.Duration > 0 {
		id := n.ID
		c.timers[id] = c.afterFunc(n.Duration, func() { c.expire(id) })
	}
	snapshot, listeners := c.applyLocked(notificationAdded{notification: n})
	c.mu.Unlock()

	publish(snapshot, listeners)
	return n.ID
}

// RemoveNotification drops a notification early and stops its timer.
func (c *Controller) RemoveNotification(id string) bool {
	c.mu.Lock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	found := false
	for _, n := range c.state.Notifications {
		if n.ID == id {
			found = true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		return false
	}
	snapshot, listeners := c.applyLocked(notificationRemove{id: id})
	c.mu.Unlock()

	publish(snapshot, listeners)
	return true
}

// Reset cancels in-flight work and timers and returns to the initial state.
func (c *Controller) Reset() {
	c.api.CancelAll()
	c.mu.Lock()
	c.stopTimersLocked()
	c.seq++
	snapshot, listeners := c.applyLocked(stateReset{defaultLimit: c.limit})
	c.mu.Unlock()

	publish(snapshot, listeners)
}

// Teardown cancels in-flight requests and timers. The controller accepts no further work.
func (c *Controller) Teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.seq++
	c.stopTimersLocked()
	c.listeners = map[int]func(State){}
	c.mu.Unlock()

	c.api.CancelAll()
	c.logg.Debug(context.Background(), "dashboard.teardown")
}

func (c *Controller) begin(a action) (uint64, State, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, State{}, ErrClosed
	}
	c.seq++
	seq := c.seq
	snapshot, listeners := c.applyLocked(a)
	c.mu.Unlock()

	publish(snapshot, listeners)
	return seq, snapshot, nil
}

// fetch loads engagements and the overview together. Only the newest load whose
// response generation is still current may write.
func (c *Controller) fetch(ctx context.Context, seq uint64, criteria engagements.Criteria) error {
	ctx = c.logg.WithField(ctx, "load_seq", seq)

	var (
		list     *apiclient.Result[engagements.ListResult]
		overview *apiclient.Result[engagements.OverviewSummary]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := c.api.GetEngagements(gctx, criteria)
		if err != nil {
			return err
		}
		list = res
		return nil
	})
	g.Go(func() error {
		res, err := c.api.AnalyticsSummary(gctx)
		if err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dashboard.overview.failed")
			return nil
		}
		overview = res
		return nil
	})
	err := g.Wait()

	c.mu.Lock()
	if seq != c.seq || c.closed {
		c.mu.Unlock()
		c.logg.Debug(ctx, "dashboard.load.stale")
		return ErrStale
	}
	if err == nil && !c.api.IsCurrent(list.Generation) {
		c.mu.Unlock()
		c.logg.Debug(ctx, "dashboard.load.stale_generation")
		return ErrStale
	}
	if c.state.Status != StatusLoading {
		c.mu.Unlock()
		c.logg.Debug(ctx, "dashboard.load.superseded")
		return ErrStale
	}

	if err != nil {
		state := c.errorState(err, unknownErrorCode)
		snapshot, listeners := c.applyLocked(loadFailed{err: state})
		c.mu.Unlock()
		publish(snapshot, listeners)

		c.logg.Warn(c.logg.WithField(ctx, "error_code", state.Code), "dashboard.load.failed")
		c.AddNotification(Notification{Kind: NotificationError, Title: "Failed to load engagements", Message: state.Message})
		return err
	}

	var summary *engagements.OverviewSummary
	if overview != nil && c.api.IsCurrent(overview.Generation) {
		v := overview.Value
		summary = &v
	}
	snapshot, listeners := c.applyLocked(loadSucceeded{result: list.Value, overview: summary, at: c.now().UTC()})
	c.mu.Unlock()
	publish(snapshot, listeners)

	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"returned":    len(list.Value.Data),
		"data_source": list.Value.Metadata.DataSource,
		"attempts":    list.Attempts,
	}), "dashboard.load.succeeded")
	return nil
}

func (c *Controller) dispatch(a action) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snapshot, listeners := c.applyLocked(a)
	c.mu.Unlock()
	publish(snapshot, listeners)
}

func (c *Controller) applyLocked(a action) (State, []func(State)) {
	c.state = reduce(c.state, a)
	listeners := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	return c.state.clone(), listeners
}

func publish(s State, listeners []func(State)) {
	for _, fn := range listeners {
		fn(s)
	}
}

func (c *Controller) expire(id string) {
	c.mu.Lock()
	if _, ok := c.timers[id]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.timers, id)
	snapshot, listeners := c.applyLocked(notificationRemove{id: id})
	c.mu.Unlock()
	publish(snapshot, listeners)
}

func (c *Controller) stopTimersLocked() {
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) errorState(err error, fallbackCode string) ErrorState {
	state := ErrorState{Message: err.Error(), Code: fallbackCode, Timestamp: c.now().UTC()}
	if apiErr := apiclient.As(err); apiErr != nil {
		state.Message = apiErr.Message
		state.Code = string(apiErr.Code)
		state.HTTPStatus = apiErr.HTTPStatus
	}
	return state
}

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/engagement-dashboard/internal/apiclient"
	"github.com/angelmondragon/engagement-dashboard/internal/engagements"
	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
	pkgerrors "github.com/angelmondragon/engagement-dashboard/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu  sync.Mutex
	gen uint64

	list     func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error)
	upload   func(ctx context.Context, filename string, r io.Reader) (engagements.UploadResult, error)
	clear    func(ctx context.Context) (engagements.ClearResult, error)
	overview error

	listCalls []engagements.Criteria
	cancels   int
}

func (f *fakeAPI) current() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

func (f *fakeAPI) GetEngagements(ctx context.Context, c engagements.Criteria) (*apiclient.Result[engagements.ListResult], error) {
	gen := f.current()
	f.mu.Lock()
	f.listCalls = append(f.listCalls, c)
	f.mu.Unlock()

	var res engagements.ListResult
	if f.list != nil {
		var err error
		if res, err = f.list(ctx, c); err != nil {
			return nil, err
		}
	}
	return &apiclient.Result[engagements.ListResult]{Value: res, Generation: gen, Attempts: 1}, nil
}

func (f *fakeAPI) AnalyticsSummary(ctx context.Context) (*apiclient.Result[engagements.OverviewSummary], error) {
	if f.overview != nil {
		return nil, f.overview
	}
	return &apiclient.Result[engagements.OverviewSummary]{
		Value:      engagements.OverviewSummary{TotalEngagements: 15420},
		Generation: f.current(),
	}, nil
}

func (f *fakeAPI) UploadCSV(ctx context.Context, filename string, r io.Reader) (*apiclient.Result[engagements.UploadResult], error) {
	gen := f.current()
	res, err := f.upload(ctx, filename, r)
	if err != nil {
		return nil, err
	}
	return &apiclient.Result[engagements.UploadResult]{Value: res, Generation: gen}, nil
}

func (f *fakeAPI) ClearUploaded(ctx context.Context) (*apiclient.Result[engagements.ClearResult], error) {
	gen := f.current()
	res, err := f.clear(ctx)
	if err != nil {
		return nil, err
	}
	return &apiclient.Result[engagements.ClearResult]{Value: res, Generation: gen}, nil
}

func (f *fakeAPI) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.cancels++
}

func (f *fakeAPI) IsCurrent(gen uint64) bool {
	return f.current() == gen
}

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type timerRecorder struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (r *timerRecorder) AfterFunc(d time.Duration, fn func()) Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &fakeTimer{d: d, fn: fn}
	r.timers = append(r.timers, t)
	return t
}

func (r *timerRecorder) all() []*fakeTimer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeTimer(nil), r.timers...)
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestController(api *fakeAPI) (*Controller, *timerRecorder) {
	timers := &timerRecorder{}
	var n int
	var mu sync.Mutex
	ctrl := NewController(api, Options{
		Now: func() time.Time { return testNow },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("n-%d", n)
		},
		AfterFunc: timers.AfterFunc,
	})
	return ctrl, timers
}

func listOf(ids ...int64) engagements.ListResult {
	data := make([]engagements.Record, len(ids))
	for i, id := range ids {
		data[i] = engagements.Record{ID: id, Type: enums.EngagementClick, Source: enums.SourceWeb}
	}
	return engagements.ListResult{
		Data:      data,
		Analytics: engagements.Summarize(data),
		Metadata:  engagements.Metadata{Total: len(data), DataSource: enums.DataSourceGenerated},
	}
}

func TestLoadSuccessStoresDataAndOverview(t *testing.T) {
	api := &fakeAPI{list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
		return listOf(1, 2, 3), nil
	}}
	ctrl, _ := newTestController(api)

	var statuses []Status
	unsubscribe := ctrl.Subscribe(func(s State) { statuses = append(statuses, s.Status) })
	defer unsubscribe()

	require.NoError(t, ctrl.Load(context.Background(), engagements.Criteria{Limit: 10}))

	s := ctrl.State()
	assert.Equal(t, StatusLoaded, s.Status)
	assert.Len(t, s.Engagements, 3)
	require.NotNil(t, s.Analytics)
	assert.Equal(t, 3, s.Analytics.TotalEngagements)
	require.NotNil(t, s.Overview)
	assert.Equal(t, 15420, s.Overview.TotalEngagements)
	assert.Equal(t, testNow, s.LastUpdated)
	assert.Equal(t, []Status{StatusLoading, StatusLoaded}, statuses)
}

func TestLoadSurvivesOverviewFailure(t *testing.T) {
	api := &fakeAPI{
		list:     func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) { return listOf(1), nil },
		overview: errors.New("summary down"),
	}
	ctrl, _ := newTestController(api)

	require.NoError(t, ctrl.Load(context.Background(), engagements.Criteria{}))
	s := ctrl.State()
	assert.Equal(t, StatusLoaded, s.Status)
	assert.Nil(t, s.Overview)
}

func TestLoadFailureTransitionsAndNotifies(t *testing.T) {
	api := &fakeAPI{list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
		return engagements.ListResult{}, &apiclient.Error{
			Message:    "dependency unavailable",
			Code:       pkgerrors.CodeDependency,
			HTTPStatus: http.StatusServiceUnavailable,
			Kind:       apiclient.KindServer,
		}
	}}
	ctrl, timers := newTestController(api)

	err := ctrl.Load(context.Background(), engagements.Criteria{})
	require.Error(t, err)

	s := ctrl.State()
	assert.Equal(t, StatusErrored, s.Status)
	require.NotNil(t, s.Error)
	assert.Equal(t, "DEPENDENCY_ERROR", s.Error.Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.Error.HTTPStatus)

	require.Len(t, s.Notifications, 1)
	n := s.Notifications[0]
	assert.Equal(t, NotificationError, n.Kind)
	assert.Equal(t, "Failed to load engagements", n.Title)
	assert.Equal(t, defaultErrorTTL, n.Duration)

	require.Len(t, timers.all(), 1)
	assert.Equal(t, defaultErrorTTL, timers.all()[0].d)

	ctrl.ClearError()
	assert.Equal(t, StatusIdle, ctrl.State().Status)
}

func TestUnknownErrorsUseFallbackCode(t *testing.T) {
	api := &fakeAPI{list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
		return engagements.ListResult{}, errors.New("weird")
	}}
	ctrl, _ := newTestController(api)

	require.Error(t, ctrl.Load(context.Background(), engagements.Criteria{}))
	s := ctrl.State()
	require.NotNil(t, s.Error)
	assert.Equal(t, unknownErrorCode, s.Error.Code)
	assert.Equal(t, "weird", s.Error.Message)
}

func TestStaleLoadIsDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{}
	api.list = func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
		if c.Type == enums.EngagementClick {
			close(started)
			<-release
			return listOf(1), nil
		}
		return listOf(2, 3), nil
	}
	ctrl, _ := newTestController(api)

	errCh := make(chan error, 1)
	go func() {
		errCh <- ctrl.Load(context.Background(), engagements.Criteria{Type: enums.EngagementClick})
	}()
	<-started

	require.NoError(t, ctrl.Load(context.Background(), engagements.Criteria{Type: enums.EngagementView}))
	close(release)

	require.ErrorIs(t, <-errCh, ErrStale)
	s := ctrl.State()
	assert.Equal(t, StatusLoaded, s.Status)
	require.Len(t, s.Engagements, 2)
	assert.Equal(t, int64(2), s.Engagements[0].ID)
}

func TestResolutionFromCancelledGenerationIsDropped(t *testing.T) {
	api := &fakeAPI{}
	api.list = func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
		api.CancelAll()
		return listOf(9), nil
	}
	ctrl, _ := newTestController(api)

	err := ctrl.Load(context.Background(), engagements.Criteria{})
	require.ErrorIs(t, err, ErrStale)
	s := ctrl.State()
	assert.Equal(t, StatusLoading, s.Status)
	assert.Empty(t, s.Engagements)
}

func TestApplyFiltersReplacesCurrentFilters(t *testing.T) {
	api := &fakeAPI{list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
		return listOf(1), nil
	}}
	ctrl, _ := newTestController(api)
	ctx := context.Background()

	require.NoError(t, ctrl.ApplyFilters(ctx, engagements.Criteria{Type: enums.EngagementShare}))
	require.NoError(t, ctrl.ApplyFilters(ctx, engagements.Criteria{Source: enums.SourceMobile, Limit: 50}))

	require.Len(t, api.listCalls, 2)
	assert.Equal(t, 10, api.listCalls[0].Limit)
	last := api.listCalls[1]
	assert.Empty(t, last.Type)
	assert.Equal(t, enums.SourceMobile, last.Source)
	assert.Equal(t, 50, last.Limit)

	require.NoError(t, ctrl.Refresh(ctx))
	assert.Equal(t, last, api.listCalls[2])
}

func TestApplyFiltersCanClearEveryConstraint(t *testing.T) {
	api := &fakeAPI{list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
		return listOf(1), nil
	}}
	ctrl, _ := newTestController(api)
	ctx := context.Background()
	minScore := 40.0

	require.NoError(t, ctrl.ApplyFilters(ctx, engagements.Criteria{Type: enums.EngagementShare, MinScore: &minScore}))
	require.NoError(t, ctrl.ApplyFilters(ctx, engagements.Criteria{Limit: 10}))

	cleared := api.listCalls[1]
	assert.Empty(t, cleared.Type)
	assert.Nil(t, cleared.MinScore)
	assert.Equal(t, 10, cleared.Limit)
	assert.False(t, ctrl.State().Filters.IsFiltered())

	require.NoError(t, ctrl.ApplyFilters(ctx, engagements.Criteria{Source: enums.SourceWeb, Limit: 40}))
	require.NoError(t, ctrl.ResetFilters(ctx))
	assert.Equal(t, engagements.Criteria{Limit: 10}, api.listCalls[3])
	assert.Equal(t, engagements.Criteria{Limit: 10}, ctrl.State().Filters)
}

func TestUploadSuccessNotifiesAndReloads(t *testing.T) {
	api := &fakeAPI{
		list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
			return listOf(101, 102), nil
		},
		upload: func(ctx context.Context, filename string, r io.Reader) (engagements.UploadResult, error) {
			body, _ := io.ReadAll(r)
			if !strings.Contains(string(body), "click") {
				return engagements.UploadResult{}, errors.New("body missing")
			}
			return engagements.UploadResult{Processed: 2}, nil
		},
	}
	ctrl, timers := newTestController(api)
	require.NoError(t, ctrl.ApplyFilters(context.Background(), engagements.Criteria{Type: enums.EngagementClick}))

	res, err := ctrl.Upload(context.Background(), "events.csv", strings.NewReader("id,type\n1,click\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)

	s := ctrl.State()
	assert.Equal(t, StatusLoaded, s.Status)
	assert.False(t, s.UploadInFlight)
	require.Len(t, s.Notifications, 1)
	assert.Equal(t, NotificationSuccess, s.Notifications[0].Kind)
	assert.Equal(t, "Processed 2 records", s.Notifications[0].Message)
	assert.Equal(t, defaultSuccessTTL, timers.all()[0].d)

	require.Len(t, api.listCalls, 2)
	assert.Equal(t, enums.EngagementClick, api.listCalls[1].Type)
}

func TestUploadFailureKeepsEngagements(t *testing.T) {
	api := &fakeAPI{
		list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
			return listOf(1, 2), nil
		},
		upload: func(ctx context.Context, filename string, r io.Reader) (engagements.UploadResult, error) {
			return engagements.UploadResult{}, &apiclient.Error{Message: "CSV file is empty", Code: pkgerrors.CodeValidation, HTTPStatus: 400, Kind: apiclient.KindClient}
		},
	}
	ctrl, _ := newTestController(api)
	require.NoError(t, ctrl.Load(context.Background(), engagements.Criteria{}))

	_, err := ctrl.Upload(context.Background(), "empty.csv", strings.NewReader(""))
	require.Error(t, err)

	s := ctrl.State()
	assert.Equal(t, StatusErrored, s.Status)
	assert.Len(t, s.Engagements, 2)
	require.Len(t, s.Notifications, 1)
	assert.Equal(t, "Failed to upload CSV", s.Notifications[0].Title)
	assert.Equal(t, "CSV file is empty", s.Notifications[0].Message)
	assert.Len(t, api.listCalls, 1)
}

func TestUploadRejectsConcurrentUpload(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{
		list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) { return listOf(1), nil },
		upload: func(ctx context.Context, filename string, r io.Reader) (engagements.UploadResult, error) {
			close(started)
			<-release
			return engagements.UploadResult{Processed: 1}, nil
		},
	}
	ctrl, _ := newTestController(api)

	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.Upload(context.Background(), "a.csv", strings.NewReader("x"))
		errCh <- err
	}()
	<-started

	_, err := ctrl.Upload(context.Background(), "b.csv", strings.NewReader("y"))
	require.ErrorIs(t, err, ErrUploadInFlight)
	assert.True(t, ctrl.State().UploadInFlight)

	close(release)
	require.NoError(t, <-errCh)
	assert.False(t, ctrl.State().UploadInFlight)
}

func TestUploadFromCancelledGenerationSettles(t *testing.T) {
	api := &fakeAPI{
		list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) { return listOf(1, 2), nil },
	}
	api.upload = func(ctx context.Context, filename string, r io.Reader) (engagements.UploadResult, error) {
		api.CancelAll()
		return engagements.UploadResult{Processed: 4}, nil
	}
	ctrl, _ := newTestController(api)
	require.NoError(t, ctrl.Load(context.Background(), engagements.Criteria{}))

	res, err := ctrl.Upload(context.Background(), "late.csv", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrStale)
	assert.Nil(t, res)

	s := ctrl.State()
	assert.False(t, s.UploadInFlight)
	assert.Equal(t, StatusLoaded, s.Status)
	assert.Empty(t, s.LoadingMessage)
	assert.Len(t, s.Engagements, 2)
	assert.Empty(t, s.Notifications)
	assert.Len(t, api.listCalls, 1)
}

func TestUploadSupersedesInFlightLoad(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{
		list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
			close(started)
			<-release
			return listOf(7), nil
		},
		upload: func(ctx context.Context, filename string, r io.Reader) (engagements.UploadResult, error) {
			return engagements.UploadResult{}, &apiclient.Error{Message: "CSV file is empty", Code: pkgerrors.CodeValidation, HTTPStatus: 400, Kind: apiclient.KindClient}
		},
	}
	ctrl, _ := newTestController(api)

	errCh := make(chan error, 1)
	go func() {
		errCh <- ctrl.Load(context.Background(), engagements.Criteria{})
	}()
	<-started

	_, err := ctrl.Upload(context.Background(), "empty.csv", strings.NewReader(""))
	require.Error(t, err)
	close(release)

	require.ErrorIs(t, <-errCh, ErrStale)
	s := ctrl.State()
	assert.Equal(t, StatusErrored, s.Status)
	require.NotNil(t, s.Error)
	assert.Equal(t, "CSV file is empty", s.Error.Message)
	assert.Empty(t, s.Engagements)
	assert.True(t, s.LastUpdated.IsZero())
}

func TestClearUploadedReloads(t *testing.T) {
	api := &fakeAPI{
		list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) { return listOf(1), nil },
		clear: func(ctx context.Context) (engagements.ClearResult, error) {
			return engagements.ClearResult{Message: "Uploaded data cleared. Now serving generated data.", DataSource: enums.DataSourceGenerated}, nil
		},
	}
	ctrl, _ := newTestController(api)

	res, err := ctrl.ClearUploaded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, enums.DataSourceGenerated, res.DataSource)
	assert.Len(t, api.listCalls, 1)
	assert.Equal(t, StatusLoaded, ctrl.State().Status)
}

func TestNotificationExpiryAndEarlyRemoval(t *testing.T) {
	ctrl, timers := newTestController(&fakeAPI{})

	first := ctrl.AddNotification(Notification{Kind: NotificationSuccess, Title: "saved"})
	second := ctrl.AddNotification(Notification{Kind: NotificationWarning, Title: "careful", Duration: time.Minute})
	sticky := ctrl.AddNotification(Notification{Kind: NotificationInfo, Title: "pinned", Duration: -1})

	all := timers.all()
	require.Len(t, all, 2)
	assert.Equal(t, defaultSuccessTTL, all[0].d)
	assert.Equal(t, time.Minute, all[1].d)

	all[0].fn()
	s := ctrl.State()
	require.Len(t, s.Notifications, 2)
	assert.Equal(t, second, s.Notifications[0].ID)
	assert.Equal(t, sticky, s.Notifications[1].ID)

	assert.True(t, ctrl.RemoveNotification(second))
	assert.True(t, all[1].stopped)
	assert.False(t, ctrl.RemoveNotification(first))

	all[1].fn()
	require.Len(t, ctrl.State().Notifications, 1)
	assert.Equal(t, testNow, ctrl.State().Notifications[0].Timestamp)
}

func TestResetCancelsAndRestoresDefaults(t *testing.T) {
	api := &fakeAPI{list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
		return listOf(1), nil
	}}
	ctrl, timers := newTestController(api)
	require.NoError(t, ctrl.ApplyFilters(context.Background(), engagements.Criteria{Type: enums.EngagementLike}))
	ctrl.AddNotification(Notification{Title: "hello"})

	ctrl.Reset()
	s := ctrl.State()
	assert.Equal(t, StatusIdle, s.Status)
	assert.Empty(t, s.Engagements)
	assert.Empty(t, s.Notifications)
	assert.Equal(t, engagements.Criteria{Limit: engagements.DefaultLimit}, s.Filters)
	assert.Equal(t, 1, api.cancels)
	assert.True(t, timers.all()[0].stopped)
}

func TestTeardownStopsFurtherWork(t *testing.T) {
	api := &fakeAPI{list: func(ctx context.Context, c engagements.Criteria) (engagements.ListResult, error) {
		return listOf(1), nil
	}}
	ctrl, timers := newTestController(api)
	ctrl.AddNotification(Notification{Title: "bye"})

	var calls int
	ctrl.Subscribe(func(State) { calls++ })

	ctrl.Teardown()
	ctrl.Teardown()

	assert.Equal(t, 1, api.cancels)
	assert.True(t, timers.all()[0].stopped)
	require.ErrorIs(t, ctrl.Load(context.Background(), engagements.Criteria{}), ErrClosed)
	_, err := ctrl.Upload(context.Background(), "x.csv", strings.NewReader(""))
	require.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, calls)
}

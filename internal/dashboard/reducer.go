package dashboard

import (
	"time"

	"github.com/angelmondragon/engagement-dashboard/internal/engagements"
)

type action interface {
	isAction()
}

type (
	loadRequested struct {
		message string
	}
	filtersApplied struct {
		criteria engagements.Criteria
	}
	loadSucceeded struct {
		result   engagements.ListResult
		overview *engagements.OverviewSummary
		at       time.Time
	}
	loadFailed struct {
		err ErrorState
	}
	uploadStarted   struct{}
	uploadSucceeded struct{}
	uploadAbandoned struct{}
	uploadFailed    struct {
		err ErrorState
	}
	errorCleared       struct{}
	notificationAdded  struct{ notification Notification }
	notificationRemove struct{ id string }
	stateReset         struct{ defaultLimit int }
)

func (loadRequested) isAction()      {}
func (filtersApplied) isAction()     {}
func (loadSucceeded) isAction()      {}
func (loadFailed) isAction()         {}
func (uploadStarted) isAction()      {}
func (uploadSucceeded) isAction()    {}
func (uploadAbandoned) isAction()    {}
func (uploadFailed) isAction()       {}
func (errorCleared) isAction()       {}
func (notificationAdded) isAction()  {}
func (notificationRemove) isAction() {}
func (stateReset) isAction()         {}

const (
	loadingEngagementsMessage = "Loading engagements..."
	uploadingMessage          = "Uploading CSV..."
)

// reduce is pure: it never touches the previous state's slices in place.
func reduce(s State, a action) State {
	switch a := a.(type) {
	case loadRequested:
		s.Status = StatusLoading
		s.LoadingMessage = a.message

	case filtersApplied:
		s.Filters = a.criteria
		s.Status = StatusLoading
		s.LoadingMessage = loadingEngagementsMessage

	case loadSucceeded:
		if s.Status != StatusLoading {
			return s
		}
		analytics := a.result.Analytics
		meta := a.result.Metadata
		s.Status = StatusLoaded
		s.LoadingMessage = ""
		s.Engagements = append([]engagements.Record(nil), a.result.Data...)
		s.Analytics = &analytics
		s.Metadata = &meta
		if a.overview != nil {
			s.Overview = a.overview
		}
		s.Error = nil
		s.LastUpdated = a.at

	case loadFailed:
		if s.Status != StatusLoading {
			return s
		}
		e := a.err
		s.Status = StatusErrored
		s.LoadingMessage = ""
		s.Error = &e

	case uploadStarted:
		s.UploadInFlight = true
		s.Status = StatusLoading
		s.LoadingMessage = uploadingMessage

	case uploadSucceeded:
		s.UploadInFlight = false

	case uploadAbandoned:
		s.UploadInFlight = false
		if s.Status != StatusLoading || s.LoadingMessage != uploadingMessage {
			return s
		}
		s.LoadingMessage = ""
		s.Status = StatusIdle
		if !s.LastUpdated.IsZero() {
			s.Status = StatusLoaded
		}

	case uploadFailed:
		e := a.err
		s.UploadInFlight = false
		s.Status = StatusErrored
		s.LoadingMessage = ""
		s.Error = &e

	case errorCleared:
		if s.Status != StatusErrored {
			return s
		}
		s.Status = StatusIdle
		s.Error = nil

	case notificationAdded:
		next := make([]Notification, 0, len(s.Notifications)+1)
		next = append(next, s.Notifications...)
		s.Notifications = append(next, a.notification)

	case notificationRemove:
		next := make([]Notification, 0, len(s.Notifications))
		for _, n := range s.Notifications {
			if n.ID != a.id {
				next = append(next, n)
			}
		}
		s.Notifications = next

	case stateReset:
		return initialState(a.defaultLimit)
	}
	return s
}

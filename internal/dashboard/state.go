package dashboard

import (
	"time"

	"github.com/angelmondragon/engagement-dashboard/internal/engagements"
)

// Status is the controller's lifecycle phase. Exactly one holds at a time.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusErrored Status = "errored"
)

type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationWarning NotificationKind = "warning"
	NotificationInfo    NotificationKind = "info"
)

// Notification is a transient banner. A negative Duration never expires.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Duration  time.Duration    `json:"duration"`
}

// ErrorState describes the failure that moved the controller to errored.
type ErrorState struct {
	Message    string    `json:"errorMessage"`
	Code       string    `json:"errorCode"`
	HTTPStatus int       `json:"httpStatus,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// State is an immutable snapshot handed to subscribers.
type State struct {
	Status         Status                       `json:"status"`
	LoadingMessage string                       `json:"loadingMessage,omitempty"`
	Engagements    []engagements.Record         `json:"engagements"`
	Analytics      *engagements.Summary         `json:"analytics"`
	Metadata       *engagements.Metadata        `json:"metadata,omitempty"`
	Overview       *engagements.OverviewSummary `json:"overview,omitempty"`
	Filters        engagements.Criteria         `json:"-"`
	Error          *ErrorState                  `json:"error"`
	Notifications  []Notification               `json:"notifications"`
	UploadInFlight bool                         `json:"uploadInFlight"`
	LastUpdated    time.Time                    `json:"lastUpdated"`
}

func initialState(defaultLimit int) State {
	return State{
		Status:        StatusIdle,
		Engagements:   []engagements.Record{},
		Filters:       engagements.Criteria{Limit: defaultLimit},
		Notifications: []Notification{},
	}
}

// clone copies the slices a subscriber could otherwise mutate.
func (s State) clone() State {
	s.Engagements = append([]engagements.Record(nil), s.Engagements...)
	s.Notifications = append([]Notification(nil), s.Notifications...)
	if s.Error != nil {
		e := *s.Error
		s.Error = &e
	}
	return s
}

package apiclient

import (
	"net/http"
	"time"
)

// RetryPolicy bounds how often and how patiently a method is retried.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

var retryPolicies = map[string]RetryPolicy{
	http.MethodGet:    {MaxRetries: 3, BaseDelay: time.Second},
	http.MethodPost:   {MaxRetries: 2, BaseDelay: 1500 * time.Millisecond},
	http.MethodPut:    {MaxRetries: 2, BaseDelay: 1500 * time.Millisecond},
	http.MethodDelete: {MaxRetries: 1, BaseDelay: 2 * time.Second},
}

// PolicyFor returns the retry policy for method; unknown methods use the GET policy.
func PolicyFor(method string) RetryPolicy {
	if p, ok := retryPolicies[method]; ok {
		return p
	}
	return retryPolicies[http.MethodGet]
}

// Backoff is base * 2^attempt + jitter, where attempt counts failures so far starting at 0.
func (p RetryPolicy) Backoff(attempt int, jitter time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay*time.Duration(1<<uint(attempt)) + jitter
}

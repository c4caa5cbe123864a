package controllers

import (
	"net/http"

	"github.com/angelmondragon/engagement-dashboard/api/responses"
	"github.com/angelmondragon/engagement-dashboard/api/validators"
	"github.com/angelmondragon/engagement-dashboard/pkg/logger"
)

func AnalyticsSummary(svc EngagementService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteJSON(w, http.StatusOK, svc.Overview())
	}
}

// SegmentAnalytics reports per-source metrics. Unknown segment names are a 400.
func SegmentAnalytics(svc EngagementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := validators.ParseSegmentQuery(r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Segments(r.Context(), q)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, report)
	}
}

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/engagement-dashboard/internal/engagements"
	"github.com/angelmondragon/engagement-dashboard/pkg/enums"
)

// UploadField is the multipart field the backend reads the CSV from.
const UploadField = "csvFile"

// Result pairs a decoded body with the identity of the request that produced it.
type Result[T any] struct {
	Value         T
	Generation    uint64
	CorrelationID uint64
	Attempts      int
}

// HealthStatus is the body of /api/health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func decode[T any](resp *Response) (*Result[T], error) {
	var out Result[T]
	if err := json.Unmarshal(resp.Body, &out.Value); err != nil {
		return nil, parseError(resp.Status, err)
	}
	out.Generation = resp.Generation
	out.CorrelationID = resp.CorrelationID
	out.Attempts = resp.Attempts
	return &out, nil
}

func sendJSON[T any](ctx context.Context, c *Client, req Request) (*Result[T], error) {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return decode[T](resp)
}

// Health never fails: any error is reported as an unhealthy status stamped now.
func (c *Client) Health(ctx context.Context) HealthStatus {
	res, err := sendJSON[HealthStatus](ctx, c, Request{
		Method:    http.MethodGet,
		Path:      "/api/health",
		Operation: "health",
	})
	if err != nil {
		return HealthStatus{Status: "unhealthy", Timestamp: c.now().UTC()}
	}
	return res.Value
}

func (c *Client) GetEngagements(ctx context.Context, criteria engagements.Criteria) (*Result[engagements.ListResult], error) {
	return sendJSON[engagements.ListResult](ctx, c, Request{
		Method:    http.MethodGet,
		Path:      "/api/engagement",
		Query:     criteria.Values(),
		Operation: "engagements.list",
	})
}

// UploadCSV buffers r into a multipart body so retries resend the same bytes.
func (c *Client) UploadCSV(ctx context.Context, filename string, r io.Reader) (*Result[engagements.UploadResult], error) {
	if r == nil {
		return nil, configError(fmt.Errorf("upload reader is nil"))
	}
	if strings.TrimSpace(filename) == "" {
		filename = "upload.csv"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(UploadField, filename)
	if err != nil {
		return nil, configError(err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, configError(err)
	}
	if err := mw.Close(); err != nil {
		return nil, configError(err)
	}

	return sendJSON[engagements.UploadResult](ctx, c, Request{
		Method:      http.MethodPost,
		Path:        "/api/engagement/upload",
		Body:        body.Bytes(),
		ContentType: mw.FormDataContentType(),
		Operation:   "engagements.upload",
	})
}

func (c *Client) ClearUploaded(ctx context.Context) (*Result[engagements.ClearResult], error) {
	return sendJSON[engagements.ClearResult](ctx, c, Request{
		Method:    http.MethodPost,
		Path:      "/api/engagement/clear-uploaded",
		Operation: "engagements.clear_uploaded",
	})
}

func (c *Client) AnalyticsSummary(ctx context.Context) (*Result[engagements.OverviewSummary], error) {
	return sendJSON[engagements.OverviewSummary](ctx, c, Request{
		Method:    http.MethodGet,
		Path:      "/api/analytics/summary",
		Operation: "analytics.summary",
	})
}

// SegmentAnalytics asks for one segment, a comparison list, or (both empty) every segment.
func (c *Client) SegmentAnalytics(ctx context.Context, segment enums.EngagementSource, compare []enums.EngagementSource) (*Result[engagements.SegmentReport], error) {
	q := url.Values{}
	if segment != "" {
		q.Set("segment", string(segment))
	}
	if len(compare) > 0 {
		parts := make([]string, 0, len(compare))
		for _, s := range compare {
			parts = append(parts, string(s))
		}
		q.Set("compareSegments", strings.Join(parts, ","))
	}
	return sendJSON[engagements.SegmentReport](ctx, c, Request{
		Method:    http.MethodGet,
		Path:      "/api/analytics/segments",
		Query:     q,
		Operation: "analytics.segments",
	})
}

// ExportCSV returns the raw CSV attachment.
func (c *Client) ExportCSV(ctx context.Context, criteria engagements.Criteria) (*Result[[]byte], error) {
	resp, err := c.Send(ctx, Request{
		Method:    http.MethodGet,
		Path:      "/api/export/csv",
		Query:     criteria.Values(),
		Operation: "export.csv",
	})
	if err != nil {
		return nil, err
	}
	return &Result[[]byte]{
		Value:         resp.Body,
		Generation:    resp.Generation,
		CorrelationID: resp.CorrelationID,
		Attempts:      resp.Attempts,
	}, nil
}

func (c *Client) DrillDown(ctx context.Context, id int64) (*Result[engagements.DrillDown], error) {
	return sendJSON[engagements.DrillDown](ctx, c, Request{
		Method:    http.MethodGet,
		Path:      "/api/engagement/" + strconv.FormatInt(id, 10) + "/drill-down",
		Operation: "engagements.drill_down",
	})
}

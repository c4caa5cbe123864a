package metrics

import "github.com/prometheus/client_golang/prometheus"

// IngestMetrics counts CSV rows accepted by the upload endpoint and the issues found while cleaning them.
type IngestMetrics struct {
	rows   prometheus.Counter
	issues *prometheus.CounterVec
}

func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	if reg == nil {
		return &IngestMetrics{}
	}
	rows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_rows_total",
		Help: "CSV rows accepted into the uploaded working set.",
	})
	issues := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_row_issues_total",
		Help: "Row-level cleaning issues, by column.",
	}, []string{"column"})
	reg.MustRegister(rows, issues)
	return &IngestMetrics{rows: rows, issues: issues}
}

func (m *IngestMetrics) AddRows(n int) {
	if m == nil || m.rows == nil || n <= 0 {
		return
	}
	m.rows.Add(float64(n))
}

func (m *IngestMetrics) IncIssue(column string) {
	if m == nil || m.issues == nil {
		return
	}
	m.issues.WithLabelValues(normalizeLabel(column)).Inc()
}

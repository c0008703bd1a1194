package extract

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the extraction pipeline.
type Metrics struct {
	DocumentsProcessed prometheus.Counter
	RecordsExtracted   prometheus.Counter
	RowsSkipped        prometheus.Counter
}

// NewMetrics creates and registers extraction metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		DocumentsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollscan_extract_documents_total",
			Help: "Total documents run through the extraction pipeline",
		}),
		RecordsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollscan_extract_records_total",
			Help: "Total voter records assembled",
		}),
		RowsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollscan_extract_rows_skipped_total",
			Help: "Candidate rows rejected during segmentation or assembly",
		}),
	}
}

// ObserveDocument records the outcome of one processed document.
func (m *Metrics) ObserveDocument(records, skipped int) {
	if m != nil {
		m.DocumentsProcessed.Inc()
		m.RecordsExtracted.Add(float64(records))
		m.RowsSkipped.Add(float64(skipped))
	}
}

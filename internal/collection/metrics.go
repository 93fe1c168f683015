package collection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var importRows = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "movieshelf_import_rows_total",
	Help: "Rows processed by bulk operations, by kind and outcome.",
}, []string{"kind", "outcome"})

func recordRows(op Operation, outcome string, n int) {
	if n <= 0 {
		return
	}
	importRows.WithLabelValues(string(op), outcome).Add(float64(n))
}

func recordSummary(s Summary) {
	recordRows(s.Operation, "inserted", s.Inserted)
	recordRows(s.Operation, "updated", s.Updated)
	recordRows(s.Operation, "deleted", s.Deleted)
	recordRows(s.Operation, "applied", s.Applied)
	recordRows(s.Operation, "skipped", s.Skipped)
	recordRows(s.Operation, "duplicate", s.Duplicates)
	recordRows(s.Operation, "failed", s.Failed)
}

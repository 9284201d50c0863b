package metrics

import (
	"net/http"

	"codeberg.org/mutker/irrigatectl/internal/dashboard"
)

// Collector turns published snapshots into Prometheus series.
type Collector interface {
	dashboard.Observer
	Handler() http.Handler
	Enabled() bool
}

package metrics

import (
	"fmt"
	"net/http"

	"github.com/clipforge/highlighter/internal/config"
	"github.com/clipforge/highlighter/internal/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ListenAndServe starts the /metrics endpoint, kept from the teacher's
// metrics/http.go almost verbatim: a dedicated port, never the API/gateway
// port, so scraping never contends with request handling.
func ListenAndServe(promPort int) error {
	listen := fmt.Sprintf("0.0.0.0:%d", promPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.NoID("starting prometheus metrics", "version", config.Version, "addr", listen)
	return http.ListenAndServe(listen, mux)
}

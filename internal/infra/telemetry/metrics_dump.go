package telemetry

import (
	"bytes"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"mcpscout/internal/infra/fsutil"
)

// WriteMetricsText encodes every gathered family in the Prometheus text format.
func WriteMetricsText(w io.Writer, gatherer prometheus.Gatherer) error {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return fmt.Errorf("encode metric %s: %w", family.GetName(), err)
		}
	}
	return nil
}

// WriteMetricsFile dumps metrics to path, suitable for a node_exporter textfile collector.
func WriteMetricsFile(path string, gatherer prometheus.Gatherer) error {
	var buf bytes.Buffer
	if err := WriteMetricsText(&buf, gatherer); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}

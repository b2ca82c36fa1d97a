package prometheus

import (
	"bufio"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() authclient.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders client metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates a Prometheus exporter that reads from client.
func NewPrometheusExporter(client *authclient.Client) *PrometheusExporter {
	return &PrometheusExporter{source: client}
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from any value
// exposing a metrics snapshot and an audit drop count.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the exposition. A client with metrics disabled yields an
// empty 200 body.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = p.WriteTo(w)
	})
}

// Render returns the exposition as a string, or "" when metrics are disabled.
func (p *PrometheusExporter) Render() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}

// WriteTo writes the exposition to w. Nothing is written when the source has
// no metrics to report.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return 0, nil
	}

	cw := &countingWriter{w: w}
	ew := &expositionWriter{w: bufio.NewWriter(cw)}
	for _, def := range internaldefs.Counters {
		ew.counter(def, snapshot.Counters[def.ID])
	}
	bounds := internaldefs.Bounds()
	for _, def := range internaldefs.Histograms {
		if _, ok := snapshot.Histograms[def.ID]; !ok {
			continue
		}
		ew.histogram(def, bounds, internaldefs.HistogramPoint(snapshot, def.ID))
	}
	ew.counter(internaldefs.AuditDropped, dropped)

	err := ew.flush()
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}

// expositionWriter keeps the first write error and ignores later writes.
type expositionWriter struct {
	w   *bufio.Writer
	err error
}

func (e *expositionWriter) line(parts ...string) {
	if e.err != nil {
		return
	}
	for _, part := range parts {
		if _, e.err = e.w.WriteString(part); e.err != nil {
			return
		}
	}
	e.err = e.w.WriteByte('\n')
}

func (e *expositionWriter) header(def internaldefs.Def, kind string) {
	e.line("# HELP ", def.Name, " ", escapeHelp(def.Help))
	e.line("# TYPE ", def.Name, " ", kind)
}

func (e *expositionWriter) counter(def internaldefs.Def, value uint64) {
	e.header(def, "counter")
	e.line(def.Name, " ", strconv.FormatUint(value, 10))
}

func (e *expositionWriter) histogram(def internaldefs.Def, bounds []internaldefs.Bound, p internaldefs.Point) {
	e.header(def, "histogram")
	for i, b := range bounds {
		e.line(def.Name, `_bucket{le="`, b.Le, `"} `, strconv.FormatUint(p.Cumulative[i], 10))
	}
	e.line(def.Name, "_sum ", strconv.FormatFloat(p.Sum, 'g', -1, 64))
	e.line(def.Name, "_count ", strconv.FormatUint(p.Count, 10))
}

func (e *expositionWriter) flush() error {
	if e.err == nil {
		e.err = e.w.Flush()
	}
	return e.err
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

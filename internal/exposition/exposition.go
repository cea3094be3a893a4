// Package exposition picks a wire format for a scrape and writes a snapshot
// in it.
package exposition

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const (
	protoMediaType       = "application/vnd.google.protobuf"
	protoMetricFamily    = "io.prometheus.client.MetricFamily"
	openMetricsMediaType = "application/openmetrics-text"
	textMediaType        = "text/plain"
)

// Supported formats. FmtText is the fallback for anything unrecognized.
var (
	FmtText        = expfmt.NewFormat(expfmt.TypeTextPlain)
	FmtProtoDelim  = expfmt.NewFormat(expfmt.TypeProtoDelim)
	FmtOpenMetrics = expfmt.NewFormat(expfmt.TypeOpenMetrics)
)

// Negotiate returns the format for an Accept header value. Media ranges are
// considered in the order the client listed them; quality values do not
// reorder them. The first supported one wins, and FmtText is returned when
// none is supported.
func Negotiate(accept string) expfmt.Format {
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if f, ok := match(part); ok {
			return f
		}
	}
	return FmtText
}

// NegotiateHeader negotiates over every Accept header present in h.
func NegotiateHeader(h http.Header) expfmt.Format {
	return Negotiate(strings.Join(h.Values("Accept"), ","))
}

func match(mediaRange string) (expfmt.Format, bool) {
	mediaType, params, err := mime.ParseMediaType(mediaRange)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return "", false
	}

	switch mediaType {
	case textMediaType:
		return FmtText, true
	case openMetricsMediaType:
		return FmtOpenMetrics, true
	case protoMediaType:
		if p := params["proto"]; p != "" && p != protoMetricFamily {
			return "", false
		}
		if e := params["encoding"]; e != "" && e != "delimited" {
			return "", false
		}
		return FmtProtoDelim, true
	}
	return "", false
}

// Encode writes every family of snap to w in the given format, followed by
// whatever trailer the format requires. snap is not modified.
func Encode(w io.Writer, snap []*dto.MetricFamily, format expfmt.Format) error {
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range snap {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("closing encoder: %w", err)
		}
	}
	return nil
}

package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/ripta/hotscrape/internal/exposition"
	"github.com/ripta/hotscrape/internal/metrics"
	"github.com/ripta/hotscrape/internal/registry"
)

// untouchedWriter fails the test if anything writes to it.
type untouchedWriter struct {
	t      *testing.T
	header http.Header
}

func (w *untouchedWriter) Header() http.Header {
	return w.header
}

func (w *untouchedWriter) Write(b []byte) (int, error) {
	w.t.Errorf("unexpected Write(%q)", b)
	return len(b), nil
}

func (w *untouchedWriter) WriteHeader(code int) {
	w.t.Errorf("unexpected WriteHeader(%d)", code)
}

func countingNext(calls *int) http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		*calls++
	})
}

func newCounterRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "requests_total", Help: "Total requests."})
	reg.MustRegister(c)
	c.Add(5)
	return reg
}

func failingRegistry(msg string) *registry.Registry {
	reg := registry.New()
	reg.RegisterOnDemand(registry.OnDemandFunc(func(context.Context) ([]*dto.MetricFamily, error) {
		return nil, errors.New(msg)
	}))
	return reg
}

func scrape(t *testing.T, h http.Handler, path, accept string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestScrapeSuccessPlainText(t *testing.T) {
	s := New(newCounterRegistry(t), Options{})
	var calls int

	rec := scrape(t, s.Middleware(countingNext(&calls)), "/metrics", "text/plain")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(exposition.FmtText), rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "requests_total 5\n")
	require.Zero(t, calls)
}

func TestScrapePassThrough(t *testing.T) {
	s := New(newCounterRegistry(t), Options{})
	var calls int

	req := httptest.NewRequest("GET", "/other", nil)
	w := &untouchedWriter{t: t, header: http.Header{}}
	s.Middleware(countingNext(&calls)).ServeHTTP(w, req)

	require.Equal(t, 1, calls)
	require.Empty(t, w.header)
}

func TestScrapeCollectorFailure(t *testing.T) {
	s := New(failingRegistry("collector exploded"), Options{})

	rec := scrape(t, s, "/metrics", "application/vnd.google.protobuf;encoding=delimited")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "collector exploded", rec.Body.String())
	require.Equal(t, errorContentType, rec.Header().Get("Content-Type"))
}

func TestScrapeFailureWithoutMessage(t *testing.T) {
	s := New(SourceFunc(func(context.Context) (registry.Snapshot, error) {
		return nil, &registry.ScrapeError{Err: errors.New("hidden cause")}
	}), Options{})

	rec := scrape(t, s, "/metrics", "")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestScrapeFailurePlainError(t *testing.T) {
	s := New(SourceFunc(func(context.Context) (registry.Snapshot, error) {
		return nil, errors.New("backend down")
	}), Options{})

	rec := scrape(t, s, "/metrics", "")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "backend down", rec.Body.String())
}

func TestScrapeUnknownAcceptFallsBack(t *testing.T) {
	s := New(newCounterRegistry(t), Options{})

	rec := scrape(t, s, "/metrics", "application/x-unknown, text/plain;q=0.5")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(exposition.FmtText), rec.Header().Get("Content-Type"))
}

func TestScrapeProtobuf(t *testing.T) {
	s := New(newCounterRegistry(t), Options{})

	rec := scrape(t, s, "/metrics", "application/vnd.google.protobuf;proto=io.prometheus.client.MetricFamily;encoding=delimited")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(exposition.FmtProtoDelim), rec.Header().Get("Content-Type"))
	require.NotZero(t, rec.Body.Len())
}

func TestScrapeOpenMetrics(t *testing.T) {
	s := New(newCounterRegistry(t), Options{})

	rec := scrape(t, s, "/metrics", "application/openmetrics-text; version=1.0.0")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, string(exposition.FmtOpenMetrics), rec.Header().Get("Content-Type"))
	require.True(t, strings.HasSuffix(rec.Body.String(), "# EOF\n"))
}

func TestScrapeAnyMethod(t *testing.T) {
	s := New(newCounterRegistry(t), Options{})

	req := httptest.NewRequest("POST", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestScrapeStandaloneNotFound(t *testing.T) {
	s := New(newCounterRegistry(t), Options{})

	rec := scrape(t, s, "/metrics/extra", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScrapeCustomExactPath(t *testing.T) {
	s := New(newCounterRegistry(t), Options{Match: ExactPath("/internal/prom")})

	require.Equal(t, http.StatusOK, scrape(t, s, "/internal/prom", "").Code)
	require.Equal(t, http.StatusNotFound, scrape(t, s, "/metrics", "").Code)
}

type emptyPathTest struct {
	path    string
	handled bool
}

var emptyPathTests = []emptyPathTest{
	{"/metrics", true},
	{"/metrics/", false},
	{"/metrics/sub", false},
}

func TestScrapeEmptyPathUnderStripPrefix(t *testing.T) {
	s := New(newCounterRegistry(t), Options{Match: EmptyPath()})

	for _, tt := range emptyPathTests {
		var calls int
		h := http.StripPrefix("/metrics", s.Middleware(countingNext(&calls)))
		rec := scrape(t, h, tt.path, "")

		if tt.handled {
			require.Equal(t, http.StatusOK, rec.Code, tt.path)
			require.Zero(t, calls, tt.path)
		} else {
			require.Equal(t, 1, calls, tt.path)
		}
	}
}

func TestScrapeTimeout(t *testing.T) {
	reg := registry.New()
	reg.RegisterOnDemand(registry.OnDemandFunc(func(ctx context.Context) ([]*dto.MetricFamily, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	s := New(reg, Options{Timeout: 10 * time.Millisecond})

	rec := scrape(t, s, "/metrics", "")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "scrape abandoned")
}

func TestScrapeTimeoutBoundsSlowCollector(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	reg := registry.New()
	reg.RegisterOnDemand(registry.NewFuncCollector(prometheus.GaugeOpts{Name: "slow", Help: "Ignores cancellation."}, func() (float64, error) {
		<-release
		return 1, nil
	}))
	s := New(reg, Options{Timeout: 50 * time.Millisecond})

	start := time.Now()
	rec := scrape(t, s, "/metrics", "")

	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "scrape abandoned: context deadline exceeded", rec.Body.String())
}

func TestScrapeFailureWhitespaceMessage(t *testing.T) {
	s := New(SourceFunc(func(context.Context) (registry.Snapshot, error) {
		return nil, &registry.ScrapeError{Message: " \t\n"}
	}), Options{})

	rec := scrape(t, s, "/metrics", "")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestScrapeSelfMetrics(t *testing.T) {
	promReg := prometheus.NewRegistry()
	m := metrics.NewScrape(promReg, "test")

	ok := New(newCounterRegistry(t), Options{Metrics: m})
	bad := New(failingRegistry("nope"), Options{Metrics: m})

	scrape(t, ok, "/metrics", "")
	scrape(t, ok, "/metrics", "")
	scrape(t, bad, "/metrics", "")
	scrape(t, ok, "/elsewhere", "")

	require.Equal(t, 2.0, testutil.ToFloat64(m.Total.WithLabelValues(metrics.OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Total.WithLabelValues(metrics.OutcomeFailure)))
}

func TestScrapeConcurrent(t *testing.T) {
	reg := registry.New()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "hits_total", Help: "Hits."})
	reg.MustRegister(c)
	s := New(reg, Options{})

	srv := httptest.NewServer(s)
	defer srv.Close()

	var wg sync.WaitGroup
	codes := make(chan int, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
			resp, err := http.Get(srv.URL + "/metrics")
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		require.Equal(t, http.StatusOK, code)
	}
}

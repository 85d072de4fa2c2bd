package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/flemzord/toolguard/internal/moderation"
)

func TestMetrics_Report(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	ctx := context.Background()
	m.Report(ctx, moderation.Decision{Tool: "web_fetch", Outcome: moderation.OutcomeRedacted})
	m.Report(ctx, moderation.Decision{Tool: "web_fetch", Outcome: moderation.OutcomeRedacted})
	m.Report(ctx, moderation.Decision{Tool: "read_file", Outcome: moderation.OutcomePassed})

	if got := testutil.ToFloat64(m.decisions.WithLabelValues("web_fetch", "redacted")); got != 2 {
		t.Errorf("web_fetch/redacted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.decisions.WithLabelValues("read_file", "passed")); got != 1 {
		t.Errorf("read_file/passed = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.decisions); got != 2 {
		t.Errorf("series = %d, want 2", got)
	}
}

func TestMetrics_KnownToolsBoundsLabels(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.KnownTools("web_fetch", "read_file")
	ctx := context.Background()
	for i := range 50 {
		m.Report(ctx, moderation.Decision{Tool: fmt.Sprintf("caller-tool-%d", i), Outcome: moderation.OutcomePassed})
	}
	m.Report(ctx, moderation.Decision{Tool: "web_fetch", Outcome: moderation.OutcomePassed})

	if got := testutil.ToFloat64(m.decisions.WithLabelValues(OtherToolLabel, "passed")); got != 50 {
		t.Errorf("%s/passed = %v, want 50", OtherToolLabel, got)
	}
	if got := testutil.CollectAndCount(m.decisions); got != 2 {
		t.Errorf("series = %d, want 2", got)
	}
}

func TestMetrics_ObserveClassify(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveClassify("t", 120*time.Millisecond, moderation.Verdict{Score: 40}, nil)
	m.ObserveClassify("t", 2*time.Second, moderation.Verdict{}, errors.New("timeout"))

	if got := testutil.CollectAndCount(m.latency); got != 2 {
		t.Errorf("latency series = %d, want ok and error", got)
	}
	if got := testutil.CollectAndCount(m.scores); got != 1 {
		t.Errorf("scores series = %d, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.Report(context.Background(), moderation.Decision{Tool: "web_fetch", Outcome: moderation.OutcomeFailedClosed})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test cleanup
	body, _ := io.ReadAll(resp.Body)

	want := `toolguard_moderation_decisions_total{outcome="failed_closed",tool="web_fetch"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("exposition missing %q", want)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("runtime collector not registered")
	}
}

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPushSkipsWithoutGateway(t *testing.T) {
	if err := Push(context.Background(), "", "xebench_worker", "1"); err != nil {
		t.Fatalf("Push without gateway should be a no-op: %v", err)
	}
}

func TestPushSendsGroupedMetrics(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	TaskStartedTotal.WithLabelValues("push-test").Inc()
	if err := Push(context.Background(), srv.URL, "xebench_worker", "4242"); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if gotPath != "/metrics/job/xebench_worker/job_id/4242" {
		t.Errorf("unexpected push path %q", gotPath)
	}
	if gotBody == "" {
		t.Error("expected a metrics payload")
	}
}

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(AggregateFilesTotal.WithLabelValues("skipped"))
	AggregateFilesTotal.WithLabelValues("skipped").Inc()
	if got := testutil.ToFloat64(AggregateFilesTotal.WithLabelValues("skipped")); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}
	if n := testutil.CollectAndCount(FidelityXEB); n != 1 {
		t.Errorf("expected one fidelity series, got %d", n)
	}
}

func TestPushRetriesTransientFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := Push(context.Background(), srv.URL, "xebench_worker", "7"); err != nil {
		t.Fatalf("Push failed after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 push attempts, got %d", calls)
	}
}

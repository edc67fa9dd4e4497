package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"praxis-hq/charter/pkg/config"
)

func testCollector() *Collector {
	cfg := &config.MetricsConfig{Enabled: true}
	return NewCollector(cfg, prometheus.NewRegistry())
}

func TestDecisionMetrics(t *testing.T) {
	c := testCollector()

	c.Decision().RecordDecision("deny", "no_matching_rule", 2*time.Millisecond)
	c.Decision().RecordDecision("deny", "no_matching_rule", 3*time.Millisecond)
	c.Decision().RecordDecision("permit", "matched", time.Millisecond)
	c.Decision().RecordCacheHit()
	c.Decision().RecordCacheMiss()
	c.Decision().RecordSwap(7)

	got := testutil.ToFloat64(c.Decision().decisionsTotal.WithLabelValues("deny", "no_matching_rule"))
	if got != 2 {
		t.Errorf("expected 2 deny decisions, got %v", got)
	}
	if got := testutil.ToFloat64(c.Decision().generation); got != 7 {
		t.Errorf("expected generation gauge 7, got %v", got)
	}
}

func TestPipelineMetrics(t *testing.T) {
	c := testCollector()

	c.Pipeline().RecordVerification("automated", "passed", 40*time.Millisecond)
	c.Pipeline().RecordConflict("priority_weight")
	c.Pipeline().RecordPromotion("ok")
	c.Pipeline().SetReviewQueueDepth(3)

	if got := testutil.ToFloat64(c.Pipeline().reviewQueueDepth); got != 3 {
		t.Errorf("expected queue depth 3, got %v", got)
	}
	if got := testutil.ToFloat64(c.Pipeline().conflictsTotal.WithLabelValues("priority_weight")); got != 1 {
		t.Errorf("expected 1 conflict, got %v", got)
	}
}

func TestDisabledCollectorIsNoop(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: false}
	c := NewCollector(cfg, prometheus.NewRegistry())

	c.Decision().RecordDecision("deny", "timeout", time.Millisecond)
	c.Audit().RecordDropped()

	if got := testutil.ToFloat64(c.Audit().droppedTotal); got != 0 {
		t.Errorf("disabled collector recorded %v drops", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	c := testCollector()
	c.Decision().RecordDecision("deny", "no_matching_rule", time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "charter_policy_decisions_total") {
		t.Error("scrape output missing decision counter")
	}
}

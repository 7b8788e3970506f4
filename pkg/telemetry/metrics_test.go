package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewMetrics error: %v", err)
	}
	return m
}

func TestMetrics_Record(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDocumentOpened("json", "ok", time.Millisecond)
	m.RecordDocumentOpened("json", "ok", time.Millisecond)
	m.RecordDocumentOpened("yaml", "error", time.Millisecond)
	m.SetLiveHandles(2)
	m.RecordOperation("get_value", "error", time.Microsecond)
	m.RecordError("mismatch", "TYPE_MISMATCH")
	m.RecordError("lookup", "")

	expected := `
# HELP test_documents_opened_total Total number of document open attempts
# TYPE test_documents_opened_total counter
test_documents_opened_total{format="json",status="ok"} 2
test_documents_opened_total{format="yaml",status="error"} 1
# HELP test_handles_live Current number of live document handles
# TYPE test_handles_live gauge
test_handles_live 2
# HELP test_operations_total Total number of boundary operations
# TYPE test_operations_total counter
test_operations_total{operation="get_value",outcome="error"} 1
# HELP test_errors_by_class_total Total number of errors by error class
# TYPE test_errors_by_class_total counter
test_errors_by_class_total{class="lookup"} 1
test_errors_by_class_total{class="mismatch"} 1
# HELP test_errors_by_code_total Total number of errors by error code
# TYPE test_errors_by_code_total counter
test_errors_by_code_total{code="TYPE_MISMATCH"} 1
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"test_documents_opened_total",
		"test_handles_live",
		"test_operations_total",
		"test_errors_by_class_total",
		"test_errors_by_code_total",
	)
	if err != nil {
		t.Error(err)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var nilMetrics *Metrics
	disabled, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics error: %v", err)
	}

	for name, m := range map[string]*Metrics{"nil": nilMetrics, "disabled": disabled} {
		t.Run(name, func(t *testing.T) {
			m.RecordDocumentOpened("json", "ok", time.Millisecond)
			m.SetLiveHandles(1)
			m.RecordOperation("open", "ok", time.Millisecond)
			m.RecordError("load", "LOAD_FAILED")
			if m.Registry() != nil {
				t.Error("expected nil registry")
			}
			server, err := m.StartMetricsServer()
			if err != nil || server != nil {
				t.Errorf("StartMetricsServer = %v, %v", server, err)
			}
		})
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := newTestMetrics(t)
	m.SetLiveHandles(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_handles_live 3") {
		t.Errorf("body missing gauge:\n%s", rec.Body.String())
	}

	var disabled *Metrics
	rec = httptest.NewRecorder()
	disabled.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled status = %d", rec.Code)
	}
}

package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInstrumentPreservesResponse(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/info", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status=%d, want 418", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Fatalf("body=%q", rec.Body.String())
	}
}

func TestLogEventEmitsJSON(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	LogEvent("authz.test_event", map[string]any{"answer": 42})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v (%q)", err, buf.String())
	}
	if entry["event"] != "authz.test_event" {
		t.Fatalf("event=%v", entry["event"])
	}
	if entry["answer"] != float64(42) {
		t.Fatalf("answer=%v", entry["answer"])
	}
	if entry["ts"] == "" {
		t.Fatal("missing timestamp")
	}
}

func TestCounterHelpers(t *testing.T) {
	// The helpers must be callable before Init registers anything; the
	// collectors work unregistered.
	IncCrossTenantDenial()
	IncPermissionDenial("inventory", "delete")
	IncJoinDecision("approved")
	IncClaimsSyncFailure()
}

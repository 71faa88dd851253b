// internal/middleware/logging_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestLogMiddlewareRecordsStatus(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/page/send", nil))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected a log entry")
	}
	if entry.Data["status"] != http.StatusNotFound {
		t.Fatalf("status field = %v, want %d", entry.Data["status"], http.StatusNotFound)
	}
	if entry.Data["method"] != "POST" || entry.Data["path"] != "/page/send" {
		t.Fatalf("unexpected fields: %v", entry.Data)
	}
}

func TestLogMiddlewareDefaultsToOK(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))

	entry := hook.LastEntry()
	if entry == nil || entry.Data["status"] != http.StatusOK {
		t.Fatalf("implicit 200 must be recorded, got %+v", entry)
	}
}

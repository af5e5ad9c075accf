package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFail_WritesEnvelopeWithRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	c.Writer.Header().Set("X-Request-ID", "rid-1")

	fail(c, http.StatusNotFound, ErrCodeNotFound, "cluster definition not found")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.RequestID != "rid-1" || resp.Code != ErrCodeNotFound {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if !c.IsAborted() {
		t.Error("fail must abort the request")
	}
}

func TestFail_ServerErrorLogsAndAborts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

	Fail(c, http.StatusInternalServerError, ErrCodeInternal, "boom")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Message != "boom" {
		t.Fatalf("message = %q; want boom", resp.Message)
	}
}

func TestOk_SerializesBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ok(c, http.StatusOK, gin.H{"status": "fine"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if got := w.Body.String(); got != `{"status":"fine"}` {
		t.Fatalf("body = %s", got)
	}
}

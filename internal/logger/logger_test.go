package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestLogger_WritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("api", &buf)

	log.Error("table_update_failed", "could not save table", "req-1", errors.New("boom"), map[string]interface{}{
		"table_id": 7,
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}

	want := map[string]interface{}{
		"service":    "api",
		"action":     "table_update_failed",
		"request_id": "req-1",
		"msg":        "could not save table",
		"level":      "ERROR",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if entry["table_id"] != float64(7) {
		t.Errorf("table_id = %v", entry["table_id"])
	}
	group, ok := entry["error"].(map[string]interface{})
	if !ok || group["msg"] != "boom" {
		t.Errorf("error group = %v", entry["error"])
	}
}

func TestLogger_ErrorWithoutErr(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("api", &buf).Error("validation_failed", "bad mode", "", nil, nil)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if _, ok := entry["error"]; ok {
		t.Error("unexpected error group for nil error")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFrom(ctx); got != "" {
		t.Fatalf("empty context returned %q", got)
	}

	id := GenerateRequestID()
	if len(id) != 36 {
		t.Fatalf("unexpected request id %q", id)
	}
	if got := RequestIDFrom(WithRequestID(ctx, id)); got != id {
		t.Fatalf("RequestIDFrom = %q, want %q", got, id)
	}
}

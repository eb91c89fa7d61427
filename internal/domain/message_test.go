package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestChatResponseTerminalRecordDecodes(t *testing.T) {
	line := `{"model":"llama3","created_at":"2024-05-01T10:00:00.123456789Z","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","total_duration":900,"load_duration":100,"prompt_eval_count":7,"prompt_eval_duration":200,"eval_count":12,"eval_duration":600}`

	var r ChatResponse
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.IsTerminal() || r.DoneReason != "stop" {
		t.Errorf("got %+v", r)
	}
	m := r.Metrics()
	want := ChatMetrics{TotalDuration: 900, LoadDuration: 100, PromptEvalCount: 7, PromptEvalDuration: 200, EvalCount: 12, EvalDuration: 600}
	if m != want {
		t.Errorf("Metrics() = %+v, want %+v", m, want)
	}

	ts, err := r.CreatedTime()
	if err != nil {
		t.Fatalf("CreatedTime: %v", err)
	}
	if ts.Nanosecond() != 123456789 {
		t.Errorf("nanoseconds = %d", ts.Nanosecond())
	}
}

func TestChatResponseCreatedTimeInvalid(t *testing.T) {
	if _, err := (ChatResponse{CreatedAt: "yesterday"}).CreatedTime(); err == nil {
		t.Error("expected parse error")
	}
}

func TestChatRequestOmitsUnsetFields(t *testing.T) {
	data, err := json.Marshal(ChatRequest{Model: "llama3"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"model":"llama3"}` {
		t.Errorf("got %s", data)
	}

	data, _ = json.Marshal(ChatRequest{Model: "llama3", Stream: Bool(false)})
	if string(data) != `{"model":"llama3","stream":false}` {
		t.Errorf("got %s", data)
	}
}

func TestTokensPerSecond(t *testing.T) {
	m := ChatMetrics{EvalCount: 50, EvalDuration: int64(2 * time.Second)}
	if got := m.TokensPerSecond(); math.Abs(got-25) > 1e-9 {
		t.Errorf("TokensPerSecond = %v, want 25", got)
	}
	if got := (ChatMetrics{EvalCount: 5}).TokensPerSecond(); got != 0 {
		t.Errorf("zero duration: got %v", got)
	}
}

func TestProgressPercent(t *testing.T) {
	if p := (ProgressResponse{Total: 200, Completed: 50}).Percent(); p != 25 {
		t.Errorf("Percent = %v", p)
	}
	if p := (ProgressResponse{Status: "pulling manifest"}).Percent(); p != -1 {
		t.Errorf("unknown total: Percent = %v", p)
	}
}

func TestCallState(t *testing.T) {
	for s, want := range map[CallState]string{
		CallIdle: "idle", CallRunning: "running", CallCompleted: "completed",
		CallAborted: "aborted", CallFailed: "failed", CallState(42): "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
	if CallRunning.Terminal() || CallIdle.Terminal() {
		t.Error("idle/running must not be terminal")
	}
	if !CallAborted.Terminal() || !CallCompleted.Terminal() || !CallFailed.Terminal() {
		t.Error("completed/aborted/failed must be terminal")
	}
}

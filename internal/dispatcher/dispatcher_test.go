package dispatcher

import (
	"encoding/json"
	"fmt"
	"testing"

	srslog "github.com/RackSec/srslog"
	"go.uber.org/zap"

	"github.com/schlitzer/pylogchop/internal/queue"
	"github.com/schlitzer/pylogchop/pkg/types"
)

// fakeWriter records the severity method invoked on it and can be
// primed to fail, standing in for a real *srslog.Writer in tests.
type fakeWriter struct {
	failOpen bool
	calls    []string
	payload  string
}

func (w *fakeWriter) Emerg(s string) error   { w.calls = append(w.calls, "Emerg"); w.payload = s; return nil }
func (w *fakeWriter) Alert(s string) error   { w.calls = append(w.calls, "Alert"); w.payload = s; return nil }
func (w *fakeWriter) Crit(s string) error    { w.calls = append(w.calls, "Crit"); w.payload = s; return nil }
func (w *fakeWriter) Err(s string) error     { w.calls = append(w.calls, "Err"); w.payload = s; return nil }
func (w *fakeWriter) Warning(s string) error { w.calls = append(w.calls, "Warning"); w.payload = s; return nil }
func (w *fakeWriter) Notice(s string) error  { w.calls = append(w.calls, "Notice"); w.payload = s; return nil }
func (w *fakeWriter) Info(s string) error    { w.calls = append(w.calls, "Info"); w.payload = s; return nil }
func (w *fakeWriter) Debug(s string) error   { w.calls = append(w.calls, "Debug"); w.payload = s; return nil }
func (w *fakeWriter) Close() error           { return nil }

func newTestDispatcher() (*Dispatcher, *fakeWriter) {
	q := queue.New()
	d := New(q, zap.NewNop().Sugar())
	w := &fakeWriter{}
	d.dial = func(facility srslog.Priority, tag string) (syslogWriter, error) {
		if w.failOpen {
			return nil, fmt.Errorf("dial failed")
		}
		return w, nil
	}
	return d, w
}

// TestStep_EmitsAtConfiguredSeverity verifies each severity name maps
// to the matching syslogWriter method.
func TestStep_EmitsAtConfiguredSeverity(t *testing.T) {
	testCases := []struct {
		severity types.Severity
		method   string
	}{
		{"LOG_EMERG", "Emerg"},
		{"LOG_ALERT", "Alert"},
		{"LOG_CRIT", "Crit"},
		{"LOG_ERR", "Err"},
		{"LOG_WARNING", "Warning"},
		{"LOG_NOTICE", "Notice"},
		{"LOG_INFO", "Info"},
		{"LOG_DEBUG", "Debug"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.severity), func(t *testing.T) {
			d, w := newTestDispatcher()
			d.q.Push(types.QueueMessage{
				Facility: "LOG_LOCAL0",
				Severity: tc.severity,
				Tag:      "app",
				Payload:  map[string]interface{}{"message": "hello"},
			})

			if !d.Step() {
				t.Fatal("Step() = false, want true (did work)")
			}
			if len(w.calls) != 1 || w.calls[0] != tc.method {
				t.Errorf("calls = %v, want [%s]", w.calls, tc.method)
			}

			var decoded map[string]interface{}
			if err := json.Unmarshal([]byte(w.payload), &decoded); err != nil {
				t.Fatalf("payload not valid JSON: %v", err)
			}
			if decoded["message"] != "hello" {
				t.Errorf("payload message = %v, want hello", decoded["message"])
			}
		})
	}
}

// TestStep_EmptyQueueIsIdle verifies Step reports false and does not
// touch the dial function when the queue is empty.
func TestStep_EmptyQueueIsIdle(t *testing.T) {
	d, w := newTestDispatcher()
	if d.Step() {
		t.Error("Step() = true on an empty queue, want false")
	}
	if len(w.calls) != 0 {
		t.Errorf("calls = %v, want none", w.calls)
	}
}

// TestStep_UnknownFacilityLogsAndContinues verifies an invalid
// facility does not panic and still reports the step as done-work.
func TestStep_UnknownFacilityLogsAndContinues(t *testing.T) {
	d, w := newTestDispatcher()
	d.q.Push(types.QueueMessage{Facility: "LOG_BOGUS", Severity: "LOG_INFO", Tag: "app"})

	if !d.Step() {
		t.Fatal("Step() = false, want true even when emit fails")
	}
	if len(w.calls) != 0 {
		t.Errorf("calls = %v, want none for an unknown facility", w.calls)
	}
}

// TestOnEmit_NotifiedOnSuccessfulEmit verifies the diagnostics hook
// fires with the message that was actually dispatched.
func TestOnEmit_NotifiedOnSuccessfulEmit(t *testing.T) {
	d, _ := newTestDispatcher()
	var got *types.QueueMessage
	d.OnEmit(func(msg types.QueueMessage) { got = &msg })

	d.q.Push(types.QueueMessage{Facility: "LOG_LOCAL0", Severity: "LOG_INFO", Tag: "app"})
	d.Step()

	if got == nil {
		t.Fatal("OnEmit callback was not invoked")
	}
	if got.Tag != "app" {
		t.Errorf("got.Tag = %q, want app", got.Tag)
	}
}

// TestDrain_StopsAfterTwoConsecutiveIdleSteps verifies Drain flushes
// every queued message and then returns instead of spinning forever.
func TestDrain_StopsAfterTwoConsecutiveIdleSteps(t *testing.T) {
	d, w := newTestDispatcher()
	for i := 0; i < 5; i++ {
		d.q.Push(types.QueueMessage{Facility: "LOG_LOCAL0", Severity: "LOG_INFO", Tag: "app"})
	}

	d.Drain()

	if len(w.calls) != 5 {
		t.Errorf("calls = %d, want 5", len(w.calls))
	}
	if d.q.Len() != 0 {
		t.Errorf("queue depth = %d, want 0", d.q.Len())
	}
}

// Package dispatcher implements the single consumer of the shared
// queue: it pops messages and writes them to the host syslog.
//
// Grounded on original_source/pylogchop/__init__.py's
// _process_message (pop-or-sleep, open/emit/close per message) but
// using github.com/RackSec/srslog as a per-Dispatcher syslog client
// rather than the process-global syslog.openlog/syslog/closelog
// triplet — see spec §4.5 and DESIGN.md.
package dispatcher

import (
	"encoding/json"
	"fmt"
	"time"

	srslog "github.com/RackSec/srslog"
	"go.uber.org/zap"

	"github.com/schlitzer/pylogchop/internal/queue"
	"github.com/schlitzer/pylogchop/pkg/types"
)

const idleSleep = 100 * time.Millisecond

// facilities maps the spec's LOG_* facility names to srslog's
// Priority constants, which use the identical naming convention.
var facilities = map[types.Facility]srslog.Priority{
	"LOG_KERN":    srslog.LOG_KERN,
	"LOG_USER":    srslog.LOG_USER,
	"LOG_MAIL":    srslog.LOG_MAIL,
	"LOG_DAEMON":  srslog.LOG_DAEMON,
	"LOG_AUTH":    srslog.LOG_AUTH,
	"LOG_LPR":     srslog.LOG_LPR,
	"LOG_NEWS":    srslog.LOG_NEWS,
	"LOG_UUCP":    srslog.LOG_UUCP,
	"LOG_CRON":    srslog.LOG_CRON,
	"LOG_SYSLOG":  srslog.LOG_SYSLOG,
	"LOG_LOCAL0":  srslog.LOG_LOCAL0,
	"LOG_LOCAL1":  srslog.LOG_LOCAL1,
	"LOG_LOCAL2":  srslog.LOG_LOCAL2,
	"LOG_LOCAL3":  srslog.LOG_LOCAL3,
	"LOG_LOCAL4":  srslog.LOG_LOCAL4,
	"LOG_LOCAL5":  srslog.LOG_LOCAL5,
	"LOG_LOCAL6":  srslog.LOG_LOCAL6,
	"LOG_LOCAL7":  srslog.LOG_LOCAL7,
}

// Dispatcher pops QueueMessages from the shared queue and emits them
// to syslog. It is the sole consumer and runs in the Supervisor's
// main goroutine.
type Dispatcher struct {
	q    *queue.Queue
	log  *zap.SugaredLogger
	dial func(facility srslog.Priority, tag string) (syslogWriter, error)

	// onEmit, if set, is notified with every message actually written
	// to syslog — the Diagnostics Server's feed. Never blocks: a full
	// subscriber channel drops the update.
	onEmit func(types.QueueMessage)
}

// syslogWriter is the subset of *srslog.Writer the Dispatcher needs,
// narrowed for testability.
type syslogWriter interface {
	Emerg(string) error
	Alert(string) error
	Crit(string) error
	Err(string) error
	Warning(string) error
	Notice(string) error
	Info(string) error
	Debug(string) error
	Close() error
}

// New creates a Dispatcher writing to the local host syslog.
func New(q *queue.Queue, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		q:   q,
		log: log,
		dial: func(facility srslog.Priority, tag string) (syslogWriter, error) {
			return srslog.Dial("", "", facility, tag)
		},
	}
}

// OnEmit registers the Diagnostics Server's subscriber callback.
func (d *Dispatcher) OnEmit(fn func(types.QueueMessage)) {
	d.onEmit = fn
}

// Step performs one Dispatcher iteration: pop-and-emit, or sleep if
// the queue is empty. Returns true if it did work ("did work" vs
// "idle", per spec §4.5).
func (d *Dispatcher) Step() bool {
	msg, ok := d.q.Pop()
	if !ok {
		time.Sleep(idleSleep)
		return false
	}

	if err := d.emit(msg); err != nil {
		d.log.Errorw("dispatcher: syslog emit failed", "tag", msg.Tag, "error", err)
	} else if d.onEmit != nil {
		d.onEmit(msg)
	}
	return true
}

// Drain runs Step until it reports idle twice in a row, or the queue
// is empty — the spec's shutdown drain rule (§4.6 Draining state).
func (d *Dispatcher) Drain() {
	idleStreak := 0
	for {
		if d.q.Len() == 0 && idleStreak >= 1 {
			return
		}
		if d.Step() {
			idleStreak = 0
		} else {
			idleStreak++
			if idleStreak >= 2 {
				return
			}
		}
	}
}

func (d *Dispatcher) emit(msg types.QueueMessage) error {
	facility, ok := facilities[msg.Facility]
	if !ok {
		return fmt.Errorf("unknown syslog facility %q", msg.Facility)
	}

	w, err := d.dial(facility, msg.Tag)
	if err != nil {
		return fmt.Errorf("open syslog: %w", err)
	}
	defer w.Close()

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	return writeAtSeverity(w, msg.Severity, string(payload))
}

func writeAtSeverity(w syslogWriter, severity types.Severity, payload string) error {
	switch severity {
	case "LOG_EMERG":
		return w.Emerg(payload)
	case "LOG_ALERT":
		return w.Alert(payload)
	case "LOG_CRIT":
		return w.Crit(payload)
	case "LOG_ERR":
		return w.Err(payload)
	case "LOG_WARNING":
		return w.Warning(payload)
	case "LOG_NOTICE":
		return w.Notice(payload)
	case "LOG_INFO":
		return w.Info(payload)
	case "LOG_DEBUG":
		return w.Debug(payload)
	default:
		return fmt.Errorf("unknown syslog severity %q", severity)
	}
}

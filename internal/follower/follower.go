// Package follower implements the per-source Follower: it tracks one
// log file across truncation, rotation and device changes and yields
// a lazy, non-restartable stream of raw lines.
package follower

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	eofSleep       = 1 * time.Second
	openRetryEvery = 10 * time.Second
)

// Event is one item from a Follower's read loop: either a raw line,
// or an EOF tick (no line was available this cycle). The Record
// Assembler uses EOF ticks to drive its starvation timer (spec §4.2).
type Event struct {
	Line string
	EOF  bool
}

// Follower tails a single file. Open on the underlying file is
// seek-to-end: only content appended after the read loop started by
// Lines has opened the file is ever delivered.
type Follower struct {
	path string
	log  *zap.SugaredLogger

	file    *os.File
	reader  *bufio.Reader
	dev     uint64
	ino     uint64
	pos     int64
	partial string // trailing bytes already pulled from the reader but not yet a complete line

	terminate atomic.Bool
	done      chan struct{}
	watcher   *fsnotify.Watcher // best-effort wake-up only, never authoritative
}

// New creates a Follower for path. It does not open the file; call
// Lines to start the read loop.
func New(path string, log *zap.SugaredLogger) *Follower {
	return &Follower{path: path, log: log, done: make(chan struct{})}
}

// Lines starts the read loop in a new goroutine and returns its event
// channel at once. The loop runs until Terminate is called (it never
// stops on its own, matching the spec's "indefinitely, until
// terminate" contract); the channel is closed once the loop observes
// the terminate flag.
func (f *Follower) Lines() <-chan Event {
	out := make(chan Event)
	go f.run(out)
	return out
}

// Terminate requests the read loop stop. Idempotent.
func (f *Follower) Terminate() {
	if f.terminate.CompareAndSwap(false, true) {
		close(f.done)
	}
}

func (f *Follower) run(out chan<- Event) {
	defer close(out)
	defer f.close()

	f.watcher, _ = fsnotify.NewWatcher() // best-effort; nil watcher degrades to pure polling
	if f.watcher != nil {
		defer f.watcher.Close()
	}

	for !f.terminate.Load() {
		if f.file != nil {
			f.checkIdentity()
		}
		if f.file == nil {
			if !f.openWithRetry() {
				return // terminate requested during retry backoff
			}
			if f.terminate.Load() {
				return
			}
		}

		chunk, err := f.reader.ReadString('\n')
		if err != nil {
			// No newline yet: ReadString still consumed whatever bytes
			// it read before hitting EOF, so they must be kept rather
			// than dropped, or a split read across two ticks would
			// corrupt the next line. Stash them and retry the same
			// reader next tick — never reseek the fd, the bufio.Reader
			// is the only thing that knows how much it has buffered.
			f.partial += chunk
			select {
			case out <- Event{EOF: true}:
			case <-f.done:
				return
			}
			if !f.waitForActivity() {
				return
			}
			continue
		}

		line := f.partial + chunk
		f.partial = ""
		f.pos += int64(len(line))
		select {
		case out <- Event{Line: line}:
		case <-f.done:
			return
		}
	}
}

// waitForActivity blocks for up to eofSleep, waking early on an
// fsnotify event if a watcher is active. Returns false if terminate
// was requested while waiting.
func (f *Follower) waitForActivity() bool {
	timer := time.NewTimer(eofSleep)
	defer timer.Stop()

	var events <-chan fsnotify.Event
	if f.watcher != nil {
		events = f.watcher.Events
	}

	select {
	case <-timer.C:
	case <-events:
		// wake up early; the next loop iteration's stat-based identity
		// check remains the sole authority on rotation/truncation.
	case <-f.done:
	}
	return !f.terminate.Load()
}

// checkIdentity implements the per-tick stat check from the spec:
// truncation, device change and inode change all close the handle so
// the next tick reopens it.
func (f *Follower) checkIdentity() {
	info, err := os.Stat(f.path)
	if err != nil {
		f.log.Errorw("follower: stat failed, closing", "path", f.path, "error", err)
		f.close()
		return
	}
	dev, ino, size := statIdentity(info)

	if f.pos > size {
		f.log.Infow("follower: truncate detected, reopening", "path", f.path)
		f.close()
		return
	}
	if dev != f.dev {
		f.log.Infow("follower: device changed, reopening", "path", f.path)
		f.close()
		return
	}
	if ino != f.ino {
		f.log.Infow("follower: inode changed, reopening", "path", f.path)
		f.close()
		return
	}
}

// openWithRetry opens the file, retrying every openRetryEvery polled
// at 1s granularity so Terminate is observed promptly. Returns false
// only if terminate fired before a successful open.
func (f *Follower) openWithRetry() bool {
	for !f.terminate.Load() {
		if f.open() {
			if f.watcher != nil {
				_ = f.watcher.Add(f.path)
			}
			return true
		}
		f.log.Errorw("follower: retrying open in 10s", "path", f.path)
		deadline := time.NewTimer(openRetryEvery)
		tick := time.NewTicker(1 * time.Second)
	retryWait:
		for {
			select {
			case <-deadline.C:
				tick.Stop()
				break retryWait
			case <-tick.C:
				if f.terminate.Load() {
					deadline.Stop()
					tick.Stop()
					return false
				}
			case <-f.done:
				deadline.Stop()
				tick.Stop()
				return false
			}
		}
	}
	return false
}

func (f *Follower) open() bool {
	file, err := os.Open(f.path)
	if err != nil {
		f.log.Errorw("follower: open failed", "path", f.path, "error", err)
		return false
	}
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		f.log.Errorw("follower: seek-to-end failed", "path", f.path, "error", err)
		return false
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		f.log.Errorw("follower: stat after open failed", "path", f.path, "error", err)
		return false
	}
	dev, ino, _ := statIdentity(info)

	f.file = file
	f.reader = bufio.NewReader(file)
	f.dev = dev
	f.ino = ino
	f.pos = end
	f.partial = ""
	return true
}

func (f *Follower) close() {
	if f.watcher != nil {
		_ = f.watcher.Remove(f.path)
	}
	if f.file != nil {
		f.file.Close()
		f.file = nil
		f.reader = nil
	}
	f.partial = ""
}

// String satisfies fmt.Stringer for log fields.
func (f *Follower) String() string {
	return fmt.Sprintf("follower(%s)", f.path)
}

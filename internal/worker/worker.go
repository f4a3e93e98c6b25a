// Package worker implements the Source Worker: it owns one source's
// Follower, Assembler and Renderer, and pushes rendered payloads onto
// the shared queue.
//
// Grounded on original_source/pylogchop/worker.py's Worker class
// (process_line/process_first_line/build_message/run) and on the
// teacher's internal/stream/log_stream.go LogStream (a small
// component gluing a tailer, a parser and a sink together, run from
// its own goroutine under a context).
package worker

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/schlitzer/pylogchop/internal/assembler"
	"github.com/schlitzer/pylogchop/internal/encoding"
	"github.com/schlitzer/pylogchop/internal/follower"
	"github.com/schlitzer/pylogchop/internal/queue"
	"github.com/schlitzer/pylogchop/internal/renderer"
	"github.com/schlitzer/pylogchop/pkg/types"
)

// settings is the live-mutable subset of a SourceConfig, published by
// the Supervisor as an atomic snapshot rather than mutated field by
// field — the systems redesign spec.md §9 recommends in place of the
// original's property-setter mutation.
type settings struct {
	tags           string
	tagsList       []string
	tagsDict       map[string]string
	template       interface{}
	syslogFacility types.Facility
	syslogSeverity types.Severity
	syslogTag      string
	anchorRegex    string
}

// Worker owns and runs one source end to end: Follower → Assembler →
// Renderer → shared queue.
type Worker struct {
	filePath string
	encoding string // fixed for this worker's lifetime; change requires restart

	log       *zap.SugaredLogger
	follower  *follower.Follower
	assembler *assembler.Assembler
	renderer  *renderer.Renderer
	codec     *encoding.Codec
	q         *queue.Queue

	live     atomic.Pointer[settings]
	done     chan struct{}
	doneOnce sync.Once

	// Snapshot, read by the Diagnostics Server.
	messagesEmitted atomic.Int64
}

// New validates that cfg's encoding resolves (the template is already
// loaded and parsed by config.SourceConfig) and returns a Worker ready
// to Start. It does not start any goroutine; per spec
// §4.4, a validation failure here means the caller must not spawn the
// worker.
func New(cfg *types.SourceConfig, q *queue.Queue, log *zap.SugaredLogger) (*Worker, error) {
	codec, err := encoding.Resolve(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		filePath: cfg.FilePath,
		encoding: cfg.Encoding,
		log:      log.With("source", cfg.FilePath),
		codec:    codec,
		q:        q,
		done:     make(chan struct{}),
	}
	w.follower = follower.New(cfg.FilePath, w.log)
	w.assembler = assembler.New(cfg.Anchor, w.log)
	w.renderer = renderer.New(w.log)
	w.live.Store(settingsFrom(cfg))
	return w, nil
}

func settingsFrom(cfg *types.SourceConfig) *settings {
	return &settings{
		tags:           cfg.Tags,
		tagsList:       cfg.TagsList,
		tagsDict:       cfg.TagsDict,
		template:       cfg.Template,
		syslogFacility: cfg.SyslogFacility,
		syslogSeverity: cfg.SyslogSeverity,
		syslogTag:      cfg.SyslogTag,
		anchorRegex:    cfg.AnchorRegex,
	}
}

// Reconfigure publishes a new live snapshot and swaps the assembler's
// anchor if it changed. Safe to call while the worker is running; it
// never touches the worker's goroutine directly, matching the spec's
// "Supervisor writes, worker reads" ownership rule.
func (w *Worker) Reconfigure(cfg *types.SourceConfig) {
	prev := w.live.Load()
	w.live.Store(settingsFrom(cfg))
	if prev == nil || prev.anchorRegex != cfg.AnchorRegex {
		w.assembler.SetAnchor(cfg.Anchor)
	}
}

// EncodingUnchanged reports whether cfg's encoding is the same as the
// one this Worker was started with — per spec.md §9, name equality,
// not object identity. The Supervisor must stop and restart the
// Worker when this is false.
func (w *Worker) EncodingUnchanged(cfg *types.SourceConfig) bool {
	return encoding.Equal(w.encoding, cfg.Encoding)
}

// FilePath returns the file this worker tails.
func (w *Worker) FilePath() string { return w.filePath }

// MessagesEmitted returns the running count of records this worker
// has pushed to the shared queue, for diagnostics only.
func (w *Worker) MessagesEmitted() int64 { return w.messagesEmitted.Load() }

// Start spawns the worker's processing goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Terminate requests the worker stop. Idempotent.
func (w *Worker) Terminate() {
	w.follower.Terminate()
}

// Join blocks until the worker's goroutine has exited. The goroutine
// only exits after Terminate, so Join without a prior Terminate never
// returns.
func (w *Worker) Join() {
	<-w.done
}

func (w *Worker) run() {
	events := w.follower.Lines()
	for ev := range events {
		if ev.EOF {
			w.checkStarvation()
			continue
		}
		w.processLine(ev.Line)
	}
	w.flushShutdown()
	w.signalDone()
}

func (w *Worker) processLine(line string) {
	decoded, err := w.codec.Decode(line)
	if err != nil {
		w.log.Errorw("worker: could not decode line, dropping", "error", err)
		return
	}

	if flushed := w.assembler.Line(decoded); flushed != nil {
		w.emit(flushed)
	}
}

// checkStarvation applies the Assembler's starvation policy on each
// Follower EOF tick: the first EOF after the last continuation line
// marks the in-flight record starving; a second consecutive EOF
// flushes it.
func (w *Worker) checkStarvation() {
	if flushed := w.assembler.EOF(); flushed != nil {
		w.emit(flushed)
	}
}

func (w *Worker) flushShutdown() {
	if flushed := w.assembler.Shutdown(); flushed != nil {
		w.emit(flushed)
	}
}

func (w *Worker) signalDone() {
	w.doneOnce.Do(func() { close(w.done) })
}

func (w *Worker) emit(rec *types.PartialRecord) {
	s := w.live.Load()

	payload := w.renderer.Render(s.template, renderer.Context{
		FirstLine:  rec.FirstLine,
		OtherLines: rec.OtherLines,
		TagsList:   s.tagsList,
		TagsDict:   s.tagsDict,
		Match:      rec.Match,
	})

	w.q.Push(types.QueueMessage{
		Facility: s.syslogFacility,
		Severity: s.syslogSeverity,
		Tag:      s.syslogTag,
		Payload:  payload,
		Source:   w.filePath,
	})
	w.messagesEmitted.Add(1)
}

// Command pylogchop is the process entrypoint: start/reload/quit
// subcommands driving a single long-running Supervisor, grounded on
// original_source/pylogchop/__init__.py's main() and the
// PyLogChop.start/reload/quit methods (PID file + signal dispatch, no
// double-fork daemonization) and built with github.com/spf13/cobra,
// the CLI framework the rest of the example pack (mtail, tast) builds
// its tools on.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/schlitzer/pylogchop/internal/applog"
	"github.com/schlitzer/pylogchop/internal/config"
	"github.com/schlitzer/pylogchop/internal/diagnostics"
	"github.com/schlitzer/pylogchop/internal/supervisor"
)

var (
	cfgPath  string
	pidPath  string
	nodaemon bool
)

func main() {
	root := &cobra.Command{
		Use:   "pylogchop",
		Short: "tail, group and re-emit multi-line log records to syslog",
	}
	root.PersistentFlags().StringVar(&cfgPath, "cfg", "/etc/pylogchop/pylogchop.conf", "path to the ini configuration file")
	root.PersistentFlags().StringVar(&pidPath, "pid", "/var/run/pylogchop.pid", "path to the PID file")
	root.PersistentFlags().BoolVar(&nodaemon, "nodaemon", false, "run in the foreground, keeping stdout/stderr attached instead of redirecting to main.dlog_file")

	root.AddCommand(startCmd(), reloadCmd(), quitCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "start the supervisor in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor()
		},
	}
}

func reloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "signal a running supervisor to reload its configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return signalRunning(syscall.SIGHUP)
		},
	}
}

func quitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "signal a running supervisor to drain and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := signalRunning(syscall.SIGTERM); err != nil {
				return err
			}
			return waitForPIDGone(pidPath)
		},
	}
}

// waitForPIDGone polls path until it no longer exists, mirroring the
// original's `while os.path.isfile(self.pid): time.sleep(...)` so
// quit only returns once the supervisor has actually exited.
func waitForPIDGone(path string) error {
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func signalRunning(sig os.Signal) error {
	pid, err := readPID(pidPath)
	if err != nil {
		return fmt.Errorf("read pid file %s: %w", pidPath, err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Signal(sig)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

func writePID(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// redirectStdio points the process's stdout and stderr at the file
// named by main.dlog_file, matching the original daemon's behavior of
// never writing application output to the controlling terminal.
func redirectStdio(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	os.Stdout = f
	os.Stderr = f
	return nil
}

// runSupervisor performs the full startup sequence: load config,
// build the app logger, write the PID file, start every source
// worker, start the optional diagnostics server, then block running
// the Dispatcher until SIGTERM, reloading on SIGHUP. A [main]
// validation failure here is fatal, per spec §7.
func runSupervisor() error {
	doc, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	mainSec, err := doc.Main()
	if err != nil {
		return fmt.Errorf("invalid [main] section: %w", err)
	}

	target, err := doc.AppLogTarget()
	if err != nil {
		return fmt.Errorf("invalid application logging section: %w", err)
	}
	log, err := applog.Build(target)
	if err != nil {
		return fmt.Errorf("build application logger: %w", err)
	}
	defer log.Sync()

	if !nodaemon {
		if err := redirectStdio(mainSec.DlogFile); err != nil {
			return fmt.Errorf("redirect stdio to %s: %w", mainSec.DlogFile, err)
		}
	}

	if err := writePID(pidPath); err != nil {
		log.Warnw("could not write pid file", "path", pidPath, "error", err)
	}
	defer os.Remove(pidPath)

	sup := supervisor.New(cfgPath, log)
	diag := diagnostics.New(mainSec.DiagnosticsAddr, diagnosticsSource{sup}, log)
	if diag != nil {
		sup.OnWorkersChanged(diag.Changed)
		sup.Dispatcher().OnEmit(diag.Emit)
		diag.Start()
		defer diag.Stop()
	}

	if err := sup.Start(); err != nil {
		return fmt.Errorf("supervisor start: %w", err)
	}
	log.Infow("pylogchop started", "cfg", cfgPath)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)

	quit := make(chan struct{})
	go func() {
		for sig := range signals {
			switch sig {
			case syscall.SIGHUP:
				log.Infow("received SIGHUP, reloading")
				sup.Reload()
			case syscall.SIGTERM, syscall.SIGINT:
				log.Infow("received termination signal, draining")
				close(quit)
				return
			}
		}
	}()

	sup.Run(quit)
	log.Infow("pylogchop stopped")
	return nil
}

// diagnosticsSource adapts *supervisor.Supervisor to diagnostics.Source
// without the diagnostics package importing supervisor.
type diagnosticsSource struct {
	sup *supervisor.Supervisor
}

func (d diagnosticsSource) Snapshots() []diagnostics.Snapshot {
	snaps := d.sup.Snapshots()
	out := make([]diagnostics.Snapshot, len(snaps))
	for i, s := range snaps {
		out[i] = diagnostics.Snapshot{
			Section:         s.Section,
			FilePath:        s.FilePath,
			MessagesEmitted: s.MessagesEmitted,
		}
	}
	return out
}

func (d diagnosticsSource) QueueDepth() int {
	return d.sup.QueueDepth()
}

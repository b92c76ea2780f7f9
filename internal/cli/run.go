package cli

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Paintersrp/warden/internal/api"
	apihttp "github.com/Paintersrp/warden/internal/api/http"
	"github.com/Paintersrp/warden/internal/cliutil"
	"github.com/Paintersrp/warden/internal/config"
	"github.com/Paintersrp/warden/internal/desktop"
	"github.com/Paintersrp/warden/internal/elevate"
	"github.com/Paintersrp/warden/internal/engine"
	"github.com/Paintersrp/warden/internal/instance"
	"github.com/Paintersrp/warden/internal/logging"
	"github.com/Paintersrp/warden/internal/logmux"
	"github.com/Paintersrp/warden/internal/loop"
	"github.com/Paintersrp/warden/internal/metrics"
	"github.com/Paintersrp/warden/internal/tui"
)

const (
	eventBuffer  = 256
	logBuffer    = 512
	logFileName  = "warden.log"
	drainTimeout = time.Second
)

var errAlreadyRunning = errors.New("another launcher instance is already running")

var newAPIServer = apihttp.NewServer

type runOptions struct {
	headless    bool
	metricsAddr string
	noElevation bool
}

func newRunCmd(ctx *context) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the launcher",
		Long: "Start the data fetcher and the core program, then wait for the game to be launched.\n" +
			"Without a terminal, or with --headless, events are written to stdout as JSON lines.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = opts.metricsAddr
			}
			if !opts.headless && !supportsInteractiveOutput(cmd) {
				opts.headless = true
			}
			return runLauncher(cmd, ctx, cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "Stream JSON events instead of starting the interactive console")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve status and Prometheus metrics on this address (e.g. 127.0.0.1:7663)")
	cmd.Flags().BoolVar(&opts.noElevation, "no-elevation", false, "Disable elevated launches; the game runs as a direct child")
	return cmd
}

func runLauncher(cmd *cobra.Command, ctx *context, cfg *config.Config, opts runOptions) error {
	logCfg := logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: cfg.Logging.OutputPaths,
	}
	if !opts.headless {
		logCfg.OutputPaths = consoleSafeOutputs(logCfg.OutputPaths, filepath.Join(cfg.BaseDir, logFileName))
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	guard := instance.New(cfg.Instance.LockPath)
	acquired, err := guard.Acquire()
	if err != nil {
		return err
	}
	if !acquired {
		logger.Warn("instance lock held elsewhere", zap.String("path", guard.Path()))
		return errAlreadyRunning
	}
	defer guard.Release()

	var ui *tui.UI
	var prompter engine.Prompter
	var notifier engine.Notifier = logNotifier{log: logger.Logger}
	if !opts.headless {
		ui = tui.New()
		prompter = ui
		notifier = ui
	}

	crash := &crashHandler{log: logger.Logger, out: os.Stderr, guard: guard, exit: os.Exit}
	if ui != nil {
		crash.stop = ui.Stop
	}
	defer func() {
		if r := recover(); r != nil {
			crash.handle(r, debug.Stack())
		}
	}()

	metrics.EmitBuildInfo()

	store, err := ctx.settingsStore(cfg)
	if err != nil {
		return err
	}

	lp := loop.New()
	loopCtx, stopLoop := stdcontext.WithCancel(stdcontext.Background())
	defer stopLoop()
	go runLoop(loopCtx, lp, crash.handle)

	mux := logmux.New(logBuffer)
	events := make(chan engine.Event, eventBuffer)

	shell := elevate.New()
	sup, err := engine.New(engine.Options{
		Loop:      lp,
		Directory: desktop.New(),
		Launcher:  shell,
		Killer:    shell,
		Settings:  store,
		Prompter:  prompter,
		Notifier:  notifier,
		Logs:      mux,
		Events:    events,
		Logger:    logger.Logger,
		Elevation: !opts.noElevation && elevationSupported(),
	}, buildProfiles(cfg))
	if err != nil {
		return err
	}

	var sink func(engine.Event)
	if ui != nil {
		ui.SetActions(sup)
		uiEvents := ui.EventSink()
		sink = func(evt engine.Event) { uiEvents <- evt }
	} else {
		enc := json.NewEncoder(cmd.OutOrStdout())
		stderr := cmd.ErrOrStderr()
		sink = func(evt engine.Event) { cliutil.EncodeEvent(enc, stderr, evt) }
	}
	pumpDone := make(chan struct{})
	crash.Go(func() {
		defer close(pumpDone)
		pump(events, mux.Output(), sink)
	})

	if addr := cfg.Metrics.Addr; addr != "" {
		server, err := newAPIServer(apihttp.Config{
			Addr:       addr,
			Controller: api.SupervisorController{Supervisor: sup, Version: Version},
		})
		if err != nil {
			return err
		}
		crash.Go(func() {
			if err := server.Run(loopCtx); err != nil {
				logger.Warn("metrics endpoint stopped", zap.String("addr", server.Addr()), zap.Error(err))
			}
		})
		logger.Info("metrics endpoint listening", zap.String("addr", server.Addr()))
	}

	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = stdcontext.Background()
	}
	startErr := sup.Start(runCtx)

	var uiErr <-chan error
	switch {
	case startErr != nil:
		logger.Error("launcher failed to start", zap.Error(startErr))
		if ui != nil {
			ui.Stop()
		}
	case ui != nil:
		errCh := make(chan error, 1)
		crash.Go(func() { errCh <- ui.Run(runCtx) })
		uiErr = errCh
		<-ui.Done()
	default:
		<-runCtx.Done()
	}

	shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), cfg.Shutdown.Timeout.Duration)
	defer cancel()
	if err := sup.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	stopLoop()
	<-lp.Done()

	close(events)
	drain(mux, pumpDone, logger.Logger)

	if ui != nil {
		ui.CloseEvents()
	}
	if uiErr != nil {
		if err := <-uiErr; err != nil {
			return err
		}
	}
	return startErr
}

// pump forwards lifecycle events and muxed child output until both streams
// are closed.
func pump(events, logs <-chan engine.Event, sink func(engine.Event)) {
	for events != nil || logs != nil {
		select {
		case evt, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			sink(evt)
		case evt, ok := <-logs:
			if !ok {
				logs = nil
				continue
			}
			sink(evt)
		}
	}
}

// drain closes the log mux and waits briefly for the pump. A child that
// survived shutdown keeps its output stream open; it is abandoned.
func drain(mux *logmux.Mux, pumpDone <-chan struct{}, log *zap.Logger) {
	go mux.Close()
	select {
	case <-pumpDone:
	case <-time.After(drainTimeout):
		log.Warn("child output still open after shutdown")
	}
}

// consoleSafeOutputs redirects terminal log outputs to file so they do not
// corrupt the interactive console.
func consoleSafeOutputs(outputs []string, file string) []string {
	if len(outputs) == 0 {
		return []string{file}
	}
	out := make([]string, 0, len(outputs))
	redirected := false
	for _, o := range outputs {
		if o == "stderr" || o == "stdout" {
			if !redirected {
				out = append(out, file)
				redirected = true
			}
			continue
		}
		out = append(out, o)
	}
	return out
}

func supportsInteractiveOutput(cmd *cobra.Command) bool {
	return isTerminal(cmd.OutOrStdout()) && isTerminal(cmd.InOrStdin())
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func elevationSupported() bool {
	return goruntime.GOOS == "windows"
}

// logNotifier reports notifications through the structured logger when no
// console is attached.
type logNotifier struct {
	log *zap.Logger
}

func (n logNotifier) Notify(note engine.Notification) {
	fields := []zap.Field{
		zap.String("role", string(note.Role)),
		zap.String("title", note.Title),
		zap.Bool("blocking", note.Blocking),
	}
	if note.Path != "" {
		fields = append(fields, zap.String("path", note.Path))
	}
	if note.Code != nil {
		fields = append(fields, zap.Int("code", *note.Code))
	}
	switch note.Severity {
	case engine.SeverityError:
		n.log.Error(note.Message, fields...)
	case engine.SeverityWarning:
		n.log.Warn(note.Message, fields...)
	default:
		n.log.Info(note.Message, fields...)
	}
}

// runLoop drives the supervisor loop and hands a panicking callback to
// crashed.
func runLoop(ctx stdcontext.Context, lp *loop.Loop, crashed func(value any, stack []byte)) {
	var perr *loop.PanicError
	if err := lp.Run(ctx); errors.As(err, &perr) {
		crashed(perr.Value, perr.Stack)
	}
}

// crashHandler is the last resort for a panic on any launcher goroutine: it
// closes the console, reports the failure, releases the instance guard and
// exits with status 1.
type crashHandler struct {
	log   *zap.Logger
	out   io.Writer
	guard *instance.Guard
	stop  func()
	exit  func(code int)

	once sync.Once
}

func (h *crashHandler) handle(value any, stack []byte) {
	h.once.Do(func() {
		if h.stop != nil {
			h.stop()
		}
		h.log.Error("unexpected error", zap.String("panic", fmt.Sprint(value)), zap.ByteString("stack", stack))
		fmt.Fprintf(h.out, "warden: Unexpected error: %v\n", value)
		if h.guard != nil {
			if err := h.guard.Release(); err != nil {
				h.log.Warn("release instance lock", zap.Error(err))
			}
		}
		_ = h.log.Sync()
		h.exit(1)
	})
}

// Go runs fn on a new goroutine whose panics reach handle.
func (h *crashHandler) Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				h.handle(r, debug.Stack())
			}
		}()
		fn()
	}()
}

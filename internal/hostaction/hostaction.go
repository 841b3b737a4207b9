// Package hostaction builds the host actions a widget file refers to.
//
// Execute is called on the session loop goroutine, so every kind that does
// I/O beyond a short write hands the work to its own goroutine.
package hostaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bhandras/wslink/internal/config"
	"github.com/bhandras/wslink/internal/logger"
	"github.com/bhandras/wslink/internal/notify"
	"github.com/bhandras/wslink/internal/reactive"
	"github.com/creack/pty"
)

// Action kinds.
const (
	KindLog    = "log"
	KindPrint  = "print"
	KindNotify = "notify"
	KindExec   = "exec"
	KindQuit   = "quit"
)

// ErrUnknownKind is returned for an action kind Build does not know.
var ErrUnknownKind = errors.New("unknown action kind")

const notifyTimeout = 15 * time.Second

// Env is what actions may touch.
type Env struct {
	Out io.Writer
	Log logger.Logger
	// Notifier backs the notify kind. Nil makes notify actions fail to build.
	Notifier notify.Notifier
	// Quit ends the host. It backs the quit kind.
	Quit func()
	// Message returns the current output attribute value, if any. Actions
	// with an empty message use it.
	Message func() string
}

func (e Env) message(fallback string) string {
	if fallback != "" {
		return fallback
	}
	if e.Message != nil {
		return e.Message()
	}
	return ""
}

// Build turns a configured action into a reactive.Action. name identifies the
// action in logs. A disabled action is built but never executable.
func Build(name string, def config.Action, env Env) (reactive.Action, error) {
	if env.Out == nil {
		env.Out = os.Stdout
	}
	log := env.Log.Str("action", name)

	var a reactive.Action
	switch def.Kind {
	case KindLog:
		a = &logAction{title: titleOr(def.Title, name), message: def.Message, env: env, log: log}
	case KindPrint:
		a = &printAction{title: titleOr(def.Title, name), message: def.Message, env: env}
	case KindNotify:
		if env.Notifier == nil {
			return nil, fmt.Errorf("action %s: notify requires pushover credentials", name)
		}
		a = &notifyAction{key: name, title: titleOr(def.Title, name), message: def.Message, env: env, log: log}
	case KindExec:
		if len(def.Command) == 0 || strings.TrimSpace(def.Command[0]) == "" {
			return nil, fmt.Errorf("action %s: exec requires a command", name)
		}
		a = &execAction{command: def.Command, env: env, log: log}
	case KindQuit:
		if env.Quit == nil {
			return nil, fmt.Errorf("action %s: quit is not supported by this host", name)
		}
		a = &quitAction{quit: env.Quit, log: log}
	default:
		return nil, fmt.Errorf("action %s: %w %q", name, ErrUnknownKind, def.Kind)
	}

	if !def.IsEnabled() {
		return reactive.Disabled{Action: a}, nil
	}
	return a, nil
}

func titleOr(title, name string) string {
	if title != "" {
		return title
	}
	return name
}

type logAction struct {
	title, message string
	env            Env
	log            logger.Logger
}

func (a *logAction) CanExecute() bool { return true }

func (a *logAction) Execute() {
	a.log.Infof("%s: %s", a.title, a.env.message(a.message))
}

type printAction struct {
	title, message string
	env            Env

	mu sync.Mutex
}

func (a *printAction) CanExecute() bool { return true }

func (a *printAction) Execute() {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = fmt.Fprintf(a.env.Out, "[%s] %s\n", a.title, a.env.message(a.message))
}

type notifyAction struct {
	key, title, message string
	env                 Env
	log                 logger.Logger
}

func (a *notifyAction) CanExecute() bool { return true }

func (a *notifyAction) Execute() {
	msg := notify.Message{Title: a.title, Body: a.env.message(a.message), Key: a.key}
	if msg.Body == "" {
		msg.Body = a.title
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := a.env.Notifier.Notify(ctx, msg); err != nil {
			a.log.Warnf("notify: %v", err)
		}
	}()
}

// execAction runs a command in a pseudo-terminal, copying its output to Out.
// It is single-flight: CanExecute is false while a run is in progress.
type execAction struct {
	command []string
	env     Env
	log     logger.Logger

	running atomic.Bool
	// done is signalled after each run; tests wait on it.
	done chan error
}

func (a *execAction) CanExecute() bool { return !a.running.Load() }

func (a *execAction) Execute() {
	if !a.running.CompareAndSwap(false, true) {
		a.log.Warnf("exec %s: already running", a.command[0])
		return
	}

	cmd := exec.Command(a.command[0], a.command[1:]...)
	cmd.Env = append(os.Environ(), "WSLINK_MESSAGE="+a.env.message(""))

	go func() {
		err := a.run(cmd)
		a.running.Store(false)
		if a.done != nil {
			a.done <- err
		}
	}()
}

func (a *execAction) run(cmd *exec.Cmd) error {
	ptyFile, err := pty.Start(cmd)
	if err != nil {
		a.log.Errorf("exec %s: %v", a.command[0], err)
		return fmt.Errorf("failed to start %s: %w", a.command[0], err)
	}
	defer func() { _ = ptyFile.Close() }()

	// Reading the pty fails with EIO once the child exits.
	_, _ = io.Copy(a.env.Out, ptyFile)

	if err := cmd.Wait(); err != nil {
		a.log.Warnf("exec %s: %v", a.command[0], err)
		return err
	}
	a.log.Debugf("exec %s: done", a.command[0])
	return nil
}

type quitAction struct {
	quit func()
	log  logger.Logger
	once sync.Once
}

func (a *quitAction) CanExecute() bool { return true }

func (a *quitAction) Execute() {
	a.once.Do(func() {
		a.log.Infof("quit requested")
		a.quit()
	})
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bhandras/wslink/internal/config"
	"github.com/bhandras/wslink/internal/foreground"
	"github.com/bhandras/wslink/internal/hostaction"
	"github.com/bhandras/wslink/internal/hostctx"
	"github.com/bhandras/wslink/internal/logger"
	"github.com/bhandras/wslink/internal/notify"
	"github.com/bhandras/wslink/internal/session"
	"github.com/bhandras/wslink/internal/transport"
	"github.com/bhandras/wslink/internal/transport/socketio"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

const (
	unmountTimeout   = 5 * time.Second
	notifyCooldown   = time.Minute
	socketIOEndpoint = "/socket.io/"
)

type connectFlags struct {
	widget string
	qr     bool
}

func newConnectCmd(cfg func() *config.Config) *cobra.Command {
	flags := &connectFlags{}
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Mount the widget and keep its session alive",
		Long: `Mount the widget defined in the widget file and keep its session open.

The session reconnects when the terminal returns to the foreground (fg after
ctrl+z) or on SIGUSR1. SIGHUP reloads the widget file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConnect(cmd.Context(), cfg(), flags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flags.widget, "widget", "", "widget file (default $WSLINK_HOME/widget.yaml)")
	cmd.Flags().BoolVar(&flags.qr, "qr", false, "print the session URL as a QR code")
	return cmd
}

func runConnect(parent context.Context, cfg *config.Config, flags *connectFlags, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	log := logger.With("connect")

	widgetPath := flags.widget
	if widgetPath == "" {
		widgetPath = cfg.WidgetFile
	}
	widget, err := config.LoadWidget(widgetPath)
	if err != nil {
		return err
	}
	if widget.EndpointGenerated {
		log.Infof("no endpoint in %s, using %s", widgetPath, widget.Endpoint)
	}

	ctx, quit := context.WithCancel(parent)
	defer quit()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, err := newHostContext(cfg, widget.Endpoint, log)
	if err != nil {
		return err
	}

	env := hostaction.Env{
		Out:  out,
		Log:  logger.With("action"),
		Quit: quit,
	}
	if cfg.PushoverToken != "" && cfg.PushoverUser != "" {
		n, err := notify.NewPushoverNotifier(notify.PushoverConfig{
			Token:    cfg.PushoverToken,
			UserKey:  cfg.PushoverUser,
			Cooldown: notifyCooldown,
		})
		if err != nil {
			return fmt.Errorf("pushover: %w", err)
		}
		env.Notifier = n
	}

	values := newWidgetValues(widget)
	env.Message = values.message
	desc, err := buildDescriptor(widget, values, env)
	if err != nil {
		return err
	}

	ctrl, err := session.NewController(session.Config{
		Dialer: newDialer(cfg),
		Host:   host,
		Log:    logger.With("session"),
		OnError: func(err error) {
			log.Errorf("session: %v", err)
		},
	})
	if err != nil {
		return err
	}

	// Dependency changes retry the open.
	update := func() {
		if err := ctrl.Update(ctrl.Descriptor()); err != nil {
			log.Debugf("update: %v", err)
		}
	}
	unsubs := []func(){
		values.endpoint.Subscribe(update),
		values.object.Subscribe(update),
		values.closeParam.Subscribe(update),
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	if err := ctrl.Mount(desc); err != nil {
		return err
	}

	if flags.qr {
		if u, err := hostctx.EndpointURL(cfg.ServerURL, widget.Endpoint); err == nil {
			printQRCode(out, u)
		}
	}

	fg := foreground.NewBroadcaster()
	reconnector := foreground.NewReconnector(fg, ctrl, logger.With("foreground"))
	reconnector.Start()
	defer reconnector.Stop()

	eg, ctx := errgroup.WithContext(ctx)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		tty := foreground.NewTTYSource(foreground.DefaultPollInterval)
		unsub := tty.Subscribe(fg.Publish)
		defer unsub()
	}

	eg.Go(func() error {
		return handleSignals(ctx, widgetPath, widget, values, ctrl, env, fg, log)
	})
	if cfg.MetricsAddr != "" {
		eg.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr) })
	}
	eg.Go(func() error {
		<-ctx.Done()
		unmountCtx, cancel := context.WithTimeout(context.Background(), unmountTimeout)
		defer cancel()
		log.Infof("unmounting")
		return ctrl.Unmount(unmountCtx)
	})

	return eg.Wait()
}

// handleSignals reloads the widget on SIGHUP and simulates a foreground
// resume on SIGUSR1.
func handleSignals(ctx context.Context, path string, current *config.Widget, values *widgetValues,
	ctrl *session.Controller, env hostaction.Env, fg *foreground.Broadcaster, log logger.Logger) error {

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				fg.Publish(foreground.Background)
				fg.Publish(foreground.Active)
			case syscall.SIGHUP:
				next, err := reloadWidget(path, current, values, ctrl, env)
				if err != nil {
					log.Warnf("reload %s: %v", path, err)
					continue
				}
				current = next
				log.Infof("reloaded %s", path)
			}
		}
	}
}

// reloadWidget re-reads the widget file and hands the new descriptor to the
// controller. A generated endpoint identifier is kept across reloads.
func reloadWidget(path string, current *config.Widget, values *widgetValues,
	ctrl *session.Controller, env hostaction.Env) (*config.Widget, error) {

	next, err := config.LoadWidget(path)
	if err != nil {
		return nil, err
	}
	if next.EndpointGenerated && current.EndpointGenerated {
		next.Endpoint = current.Endpoint
	}
	values.applyOutput(next)
	desc, err := buildDescriptor(next, values, env)
	if err != nil {
		return nil, err
	}
	if err := ctrl.Update(desc); err != nil {
		return nil, err
	}
	values.apply(next)
	return next, nil
}

func newHostContext(cfg *config.Config, endpoint string, log logger.Logger) (hostctx.Context, error) {
	if cfg.Secret == "" {
		log.Warnf("WSLINK_SECRET not set, handshakes carry no anti-forgery token")
		return hostctx.Static{URL: cfg.ServerURL}, nil
	}
	issuer, err := hostctx.NewTokenIssuer(cfg.Secret, endpoint, hostctx.DefaultTokenTTL)
	if err != nil {
		return nil, err
	}
	return &hostctx.Env{
		URL:    cfg.ServerURL,
		Tokens: issuer,
		OnError: func(err error) {
			log.Errorf("anti-forgery token: %v", err)
		},
	}, nil
}

func newDialer(cfg *config.Config) transport.Dialer {
	if cfg.Transport == config.TransportSocketIO {
		return &socketio.Dialer{Path: socketIOEndpoint}
	}
	return &transport.WebSocketDialer{}
}

func printQRCode(out io.Writer, data string) {
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		logger.Warnf("Failed to generate QR code: %v", err)
		return
	}
	fmt.Fprintln(out, qr.ToSmallString(false))
	fmt.Fprintln(out, data)
}

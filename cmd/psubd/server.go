package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/girish946/psubd/internal/adminhttp"
	"github.com/girish946/psubd/internal/audit"
	"github.com/girish946/psubd/internal/config"
	"github.com/girish946/psubd/internal/hub"
	"github.com/girish946/psubd/internal/listener"
)

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the broker",
	}
	cmd.AddCommand(newServerTCPCmd())
	cmd.AddCommand(newServerUnixCmd())
	return cmd
}

var (
	serverTLSCert     string
	serverTLSPassword string
)

func newServerTCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tcp",
		Short: "Serve over TCP, optionally wrapped in TLS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if serverTLSCert != "" {
				cfg.TLSCertPath = serverTLSCert
				cfg.TLSCertPassword = serverTLSPassword
			}
			return runServer(cfg, logger())
		},
	}
	cmd.Flags().StringVar(&serverTLSCert, "cert", "", "PKCS#12 identity file; enables TLS when set")
	cmd.Flags().StringVar(&serverTLSPassword, "cert-password", "", "password for --cert")
	return cmd
}

func newServerUnixCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "unix",
		Short: "Serve over a local Unix-domain socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if path != "" {
				cfg.UnixPath = path
			}
			cfg.TCPAddr = ""
			return runServer(cfg, logger())
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "socket path (overrides PSUBD_UNIX_PATH)")
	return cmd
}

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(logLevelFlag)}))
}

func parseLogLevel(level string) slog.Leveler {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "trace", "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	lv := new(slog.LevelVar)
	lv.Set(lvl)
	return lv
}

// runServer wires the hub, its listeners, the audit store, and the admin
// HTTP endpoint together and blocks until the process receives a
// termination signal.
func runServer(cfg config.Config, log *slog.Logger) error {
	h := hub.New(log, cfg.IngressCapacity)

	store, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init audit schema: %w", err)
	}

	go h.Run(ctx)

	recorder := func(event string) {
		if err := store.Incr(context.Background(), event); err != nil {
			log.Warn("audit: failed to record event", "event", event, "error", err)
		}
	}

	var ready atomic.Bool
	var closers []func() error

	if cfg.TCPAddr != "" {
		var ln, lnErr = openTCPOrTLS(cfg)
		if lnErr != nil {
			return lnErr
		}
		acceptor := listener.NewAcceptor(ln, h.Ingress(), log, transportName(cfg))
		acceptor.SetRecorder(recorder)
		go func() {
			if err := acceptor.Serve(); err != nil {
				log.Error("tcp listener stopped", "error", err)
			}
		}()
		closers = append(closers, acceptor.Close)

		if cfg.MDNSEnabled {
			if adv, advErr := listener.Advertise(tcpPort(ln), cfg.TLSCertPath != ""); advErr != nil {
				log.Warn("mdns advertisement failed", "error", advErr)
			} else {
				closers = append(closers, func() error { adv.Shutdown(); return nil })
			}
		}
	}

	if cfg.UnixPath != "" {
		ln, err := listener.ListenUnix(cfg.UnixPath)
		if err != nil {
			return err
		}
		acceptor := listener.NewAcceptor(ln, h.Ingress(), log, "unix")
		acceptor.SetRecorder(recorder)
		go func() {
			if err := acceptor.Serve(); err != nil {
				log.Error("unix listener stopped", "error", err)
			}
		}()
		closers = append(closers, acceptor.Close)
	}

	if cfg.WSAddr != "" {
		ws := listener.NewWSServer(cfg.WSAddr, h.Ingress(), log)
		ws.SetRecorder(recorder)
		go func() {
			if err := ws.ListenAndServe(); err != nil {
				log.Error("websocket listener stopped", "error", err)
			}
		}()
		closers = append(closers, ws.Close)
	}

	admin := adminhttp.New(cfg.AdminAddr, h.Ingress(), store, log, ready.Load)
	go func() {
		if err := admin.ListenAndServe(); err != nil {
			log.Error("admin http server stopped", "error", err)
		}
	}()
	closers = append(closers, admin.Close)

	ready.Store(true)
	log.Info("psubd started")

	<-ctx.Done()
	log.Info("psubd shutting down")
	for _, c := range closers {
		_ = c()
	}
	return nil
}

func openTCPOrTLS(cfg config.Config) (net.Listener, error) {
	if cfg.TLSCertPath != "" {
		return listener.ListenTLS(cfg.TCPAddr, cfg.TLSCertPath, cfg.TLSCertPassword)
	}
	return listener.ListenTCP(cfg.TCPAddr)
}

func transportName(cfg config.Config) string {
	if cfg.TLSCertPath != "" {
		return "tls"
	}
	return "tcp"
}

func tcpPort(ln net.Listener) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

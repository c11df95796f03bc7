package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"voxelmind.ai/internal/config"
	"voxelmind.ai/internal/provider"
	"voxelmind.ai/internal/transport/ws"
)

const envToken = "VOXELMIND_DECIDER_TOKEN"

func main() {
	var (
		listen     = flag.String("listen", "127.0.0.1:8091", "http listen address")
		configPath = flag.String("config", "./voxelmind.yaml", "settings file (provider, model and key)")
		token      = flag.String("token", "", "required HELLO auth token (or set "+envToken+")")
		timeout    = flag.Duration("timeout", 0, "per-decision timeout (default from decision_interval_ticks)")
	)
	flag.Parse()

	_ = godotenv.Load()
	logger := log.New(os.Stdout, "[decider] ", log.LstdFlags|log.Lmicroseconds)

	if strings.TrimSpace(*token) == "" {
		*token = strings.TrimSpace(os.Getenv(envToken))
	}
	if *token == "" && !isLoopbackListenAddress(*listen) {
		logger.Fatalf("refusing to serve on non-loopback address %q without a token", *listen)
	}

	cfg, err := config.Load(*configPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Fatalf("config: %v", err)
	}
	cfg = cfg.ApplyEnv()
	if provider.Kind(cfg) == provider.KindRemote {
		logger.Fatalf("decider cannot forward to another decider (agent_url=%s)", cfg.AgentURL)
	}
	prov, err := provider.New(cfg, logger)
	if err != nil {
		logger.Fatalf("provider: %v", err)
	}

	d := *timeout
	if d <= 0 {
		d = provider.Timeout(cfg.DecisionIntervalTicks)
	}
	srv := ws.NewServer(prov, d, logger)
	srv.Token = *token

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/decide", srv.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	httpSrv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("serving %s on ws://%s/v1/decide timeout=%s auth=%t", prov.Name(), *listen, d, *token != "")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("listen: %v", err)
	}
}

func isLoopbackListenAddress(addr string) bool {
	host := strings.TrimSpace(addr)
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = strings.TrimSpace(h)
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

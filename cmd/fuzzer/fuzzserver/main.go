package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexanderKus/risc-v-emulator/pkg/config"
	"github.com/alexanderKus/risc-v-emulator/pkg/fuzzinterface"
	"github.com/alexanderKus/risc-v-emulator/pkg/metrics"
	"github.com/alexanderKus/risc-v-emulator/pkg/net"
	"github.com/alexanderKus/risc-v-emulator/pkg/staterepository"
)

func main() {
	configPath := flag.String("config-path", "", "Path to a JSON configuration file")
	flags := config.Register(flag.CommandLine, "socket", "quic", "key-seed", "metrics", "data-path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	flags.Apply(&cfg)

	log.Printf("RV32I Conformance Server")
	log.Printf("Socket path: %s", cfg.SocketPath)

	if err := staterepository.InitializeGlobalRepository(cfg.DataPath); err != nil {
		log.Fatalf("Failed to initialize global state repository: %v", err)
	}
	defer staterepository.CloseGlobalRepository()

	collector := metrics.New()
	server := fuzzinterface.NewServer(staterepository.GetGlobalRepository(), collector)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.Start(cfg.SocketPath); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
		log.Println("Server completed successfully")
	}()

	if cfg.QuicAddr != "" {
		key, err := net.KeyFromSeed(cfg.KeySeed)
		if err != nil {
			log.Fatalf("Failed to derive key: %v", err)
		}
		quicServer, err := net.Listen(cfg.QuicAddr, key, server)
		if err != nil {
			log.Fatalf("Failed to listen on %s: %v", cfg.QuicAddr, err)
		}
		defer quicServer.Close()
		log.Printf("QUIC address: %s name: %s", quicServer.Addr(), quicServer.Name())
		go func() {
			if err := quicServer.Serve(ctx); err != nil {
				log.Printf("QUIC server stopped: %v", err)
			}
		}()
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		defer httpServer.Close()
		log.Printf("Metrics address: %s", cfg.MetricsAddr)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signalChan
	log.Printf("Received signal %v, shutting down", sig)
}

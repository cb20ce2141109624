// Command redisd is the server entry point: it loads configuration, brings
// up the server core (internal/server), and blocks until a shutdown signal
// or client SHUTDOWN command completes the lifecycle described in §4.1.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dreamware/redisd/internal/config"
	"github.com/dreamware/redisd/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Read(*configPath)
	if err != nil {
		log.Printf("redisd: config error: %v", err)
		return 1
	}

	srv := server.New()
	if err := srv.Startup(cfg); err != nil {
		log.Printf("redisd: startup error: %v", err)
		return 1
	}
	log.Printf("redisd: listening on %s:%d, %d shards", cfg.BindIP, cfg.Port, cfg.KVStoreCount)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		srv.WaitStopComplete()
		close(done)
	}()

	select {
	case <-stop:
		log.Print("redisd: signal received, shutting down")
		if err := srv.ShutdownForSignal(); err != nil {
			log.Printf("redisd: shutdown error: %v", err)
		}
		<-done
	case <-done:
		// A client SHUTDOWN command completed the lifecycle already.
	}

	log.Print("redisd: stopped")
	return 0
}

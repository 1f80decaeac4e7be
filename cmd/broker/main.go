// Command broker starts one node of a replicated topic-partitioned message
// broker cluster (spec §6.4): two positional arguments, path_to_config and
// index, after which the node serves both the peer RPC surface and the
// Client API on its own configured address until signalled to stop.
// Structure grounded on the teacher's cmd/server/main.go: parse arguments,
// build components, start HTTP in a goroutine, block on a signal channel,
// shut down in order.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/raftmq/broker/internal/clientapi"
	"github.com/raftmq/broker/internal/config"
	"github.com/raftmq/broker/internal/httprpc"
	"github.com/raftmq/broker/internal/raftnode"
)

func main() {
	if err := run(); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) != 3 {
		return fmt.Errorf("usage: %s path_to_config index", os.Args[0])
	}

	configPath := os.Args[1]
	index, err := strconv.Atoi(os.Args[2])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", os.Args[2], err)
	}

	cluster, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cluster.ValidateIndex(index); err != nil {
		return err
	}

	self := cluster.Nodes[index]
	peers := make(map[int]httprpc.Addr, len(cluster.Nodes)-1)
	for i, addr := range cluster.Nodes {
		if i != index {
			peers[i] = httprpc.Addr{IP: addr.IP, Port: addr.Port}
		}
	}

	logger := log.New(os.Stdout, fmt.Sprintf("[node %d] ", index), log.LstdFlags)

	client := httprpc.NewClient(peers, &http.Client{Timeout: 200 * time.Millisecond})
	cfg := raftnode.DefaultConfig(index, cluster.Peers(index))
	engine := raftnode.New(cfg, client, logger)

	mux := http.NewServeMux()
	peerServer := httprpc.NewServer(httprpc.EngineAdapter{Engine: engine})
	clientServer := clientapi.NewServer(engine, 2*time.Second)
	mux.Handle("/election/", peerServer)
	mux.Handle("/logs/", peerServer)
	mux.Handle("/topic", clientServer)
	mux.Handle("/message", clientServer)
	mux.Handle("/message/", clientServer)
	mux.Handle("/status", clientServer)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", self.IP, self.Port),
		Handler: mux,
	}

	runCtx, stopEngine := context.WithCancel(context.Background())
	go engine.Run(runCtx)

	go func() {
		logger.Printf("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	httpServer.Shutdown(shutdownCtx)
	stopEngine()
	engine.Stop()

	logger.Println("shutdown complete")
	return nil
}

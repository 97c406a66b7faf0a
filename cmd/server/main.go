package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pixelton/townsquare/internal/discovery"
	"github.com/pixelton/townsquare/internal/logging"
	"github.com/pixelton/townsquare/internal/network"
	"github.com/pixelton/townsquare/internal/session"
	"github.com/pixelton/townsquare/internal/world"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address, e.g. :8080")
	name := flag.String("name", "townsquare", "server name advertised on the LAN")
	worldFile := flag.String("world", "", "room definition file (JSON); built-in world when empty")
	logFile := flag.String("log", "server.log", "log file path")
	announce := flag.Bool("announce", true, "advertise this server on the local network")
	flag.Parse()

	log := logging.New(*logFile)
	defer log.Sync()

	w := world.Default()
	if *worldFile != "" {
		loaded, err := world.Load(*worldFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load world: %v\n", err)
			os.Exit(1)
		}
		w = loaded
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	hub := session.NewHub(session.NewRegistry(), w, rng, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	r := chi.NewRouter()
	r.Handle("/ws", network.NewHandler(hub, log))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"rooms": hub.RoomCounts(),
		})
	})

	srv := &http.Server{Addr: *addr, Handler: r}

	if *announce {
		beacon := discovery.NewBroadcaster(discovery.ServerInfo{
			Name: *name,
			Addr: advertiseAddr(*addr),
		}, log)
		beacon.Start()
		defer beacon.Stop()
		go func() {
			ticker := time.NewTicker(discovery.BroadcastInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					beacon.UpdateRooms(hub.RoomCounts())
				}
			}
		}()
	}

	go func() {
		log.Infof("listening on %s", *addr)
		fmt.Printf("townsquare server on %s\n", *addr)
		printLocalAddrs(*addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// advertiseAddr normalizes a listen address like ":8080" for LAN beacons.
func advertiseAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
		if ip := firstLocalIPv4(); ip != "" {
			host = ip
		}
	}
	return net.JoinHostPort(host, port)
}

func firstLocalIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return ""
}

// printLocalAddrs prints the addresses players can connect to.
func printLocalAddrs(addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}

	fmt.Println("Players can connect using:")
	fmt.Printf("  127.0.0.1:%s (this machine)\n", port)

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				fmt.Printf("  %s:%s\n", ipnet.IP.String(), port)
			}
		}
	}
}

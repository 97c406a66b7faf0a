package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pixelton/townsquare/internal/discovery"
	"github.com/pixelton/townsquare/internal/network"
	"github.com/pixelton/townsquare/internal/ui"
	"github.com/pixelton/townsquare/internal/world"
)

func main() {
	addr := flag.String("addr", "", "server address (e.g. 192.168.1.5:8080); empty to browse the LAN")
	room := flag.String("room", "townhall", "room to join")
	worldFile := flag.String("world", "", "room definition file (JSON); must match the server's")
	flag.Parse()

	target := *addr
	if target == "" {
		found, err := browse()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
			fmt.Fprintln(os.Stderr, "Usage: client --addr <host:port> [--room <name>]")
			os.Exit(1)
		}
		target = found
	}

	w := world.Default()
	if *worldFile != "" {
		loaded, err := world.Load(*worldFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load world: %v\n", err)
			os.Exit(1)
		}
		w = loaded
	}

	fmt.Printf("Connecting to %s, room %q...\n", target, *room)
	client, snapshot, err := network.Dial(target, *room)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	model := ui.NewModel(client, snapshot, w.Room(*room))
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// browse listens for server beacons and picks the first one heard.
func browse() (string, error) {
	l := discovery.NewListener()
	if err := l.Start(); err != nil {
		return "", err
	}
	defer l.Stop()

	fmt.Println("Browsing for servers on the local network...")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if servers := l.Servers(); len(servers) > 0 {
			s := servers[0]
			fmt.Printf("Found %q at %s (%d online)\n", s.Name, s.Addr, s.Players)
			return s.Addr, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return "", fmt.Errorf("no servers found after 5s")
}

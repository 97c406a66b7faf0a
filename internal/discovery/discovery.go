// Package discovery advertises running session servers on the local network
// over UDP broadcast, so clients can find a server without typing addresses.
package discovery

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// BroadcastPort is the UDP port used for server discovery.
	BroadcastPort = 9998
	// BroadcastInterval is how often servers advertise themselves.
	BroadcastInterval = 1 * time.Second
	// ServerExpiry is how long a server stays visible after its last beacon.
	ServerExpiry = 4 * time.Second
)

// ServerInfo describes an available session server on the network.
type ServerInfo struct {
	Name    string         `json:"name"`
	Addr    string         `json:"addr"` // host:port of the /ws endpoint
	Rooms   map[string]int `json:"rooms"`
	Players int            `json:"players"`
}

// Broadcaster periodically sends UDP broadcast beacons with server info.
type Broadcaster struct {
	mu   sync.Mutex
	info ServerInfo
	log  *zap.SugaredLogger
	done chan struct{}
}

// NewBroadcaster creates a beacon sender for this server.
func NewBroadcaster(info ServerInfo, log *zap.SugaredLogger) *Broadcaster {
	return &Broadcaster{
		info: info,
		log:  log,
		done: make(chan struct{}),
	}
}

// UpdateRooms refreshes the advertised per-room occupancy.
func (b *Broadcaster) UpdateRooms(counts map[string]int) {
	total := 0
	for _, n := range counts {
		total += n
	}
	b.mu.Lock()
	b.info.Rooms = counts
	b.info.Players = total
	b.mu.Unlock()
}

// Start begins broadcasting in the background.
func (b *Broadcaster) Start() {
	go b.broadcastLoop()
}

// Stop stops the broadcaster.
func (b *Broadcaster) Stop() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

func (b *Broadcaster) broadcastLoop() {
	// ListenPacket rather than DialUDP: dialing 255.255.255.255 silently
	// fails on Linux without SO_BROADCAST.
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		b.log.Warnw("discovery broadcast socket failed", "err", err)
		return
	}
	defer conn.Close()

	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: BroadcastPort}

	ticker := time.NewTicker(BroadcastInterval)
	defer ticker.Stop()

	b.sendBeacon(conn, dst)
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.sendBeacon(conn, dst)
		}
	}
}

func (b *Broadcaster) sendBeacon(conn net.PacketConn, dst net.Addr) {
	b.mu.Lock()
	data, err := json.Marshal(b.info)
	b.mu.Unlock()
	if err != nil {
		return
	}

	// Loopback first: global broadcast is often firewalled on the same box.
	loopback := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: BroadcastPort}
	_, _ = conn.WriteTo(data, loopback)
	_, _ = conn.WriteTo(data, dst)
	b.beaconOnInterfaces(conn, data)
}

// beaconOnInterfaces sends to each interface's broadcast address as a
// fallback for networks that drop the global broadcast.
func (b *Broadcaster) beaconOnInterfaces(conn net.PacketConn, data []byte) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagBroadcast == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			broadcast := make(net.IP, 4)
			ip4 := ipnet.IP.To4()
			for i := range broadcast {
				broadcast[i] = ip4[i] | ^ipnet.Mask[i]
			}
			_, _ = conn.WriteTo(data, &net.UDPAddr{IP: broadcast, Port: BroadcastPort})
		}
	}
}

// seenServer holds a server beacon and when it was last heard.
type seenServer struct {
	info     ServerInfo
	lastSeen time.Time
}

// Listener collects server beacons broadcast on the local network.
type Listener struct {
	mu      sync.RWMutex
	servers map[string]*seenServer // keyed by Addr
	conn    *net.UDPConn
	done    chan struct{}
}

// NewListener creates a beacon listener.
func NewListener() *Listener {
	return &Listener{
		servers: make(map[string]*seenServer),
		done:    make(chan struct{}),
	}
}

// Start begins collecting beacons.
func (l *Listener) Start() error {
	var err error
	l.conn, err = net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: BroadcastPort})
	if err != nil {
		return fmt.Errorf("listen UDP on port %d: %w (is another instance browsing?)", BroadcastPort, err)
	}

	go l.listenLoop()
	go l.cleanupLoop()
	return nil
}

// Stop stops the listener.
func (l *Listener) Stop() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	if l.conn != nil {
		l.conn.Close()
	}
}

// Servers returns a snapshot of the currently visible servers.
func (l *Listener) Servers() []ServerInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]ServerInfo, 0, len(l.servers))
	for _, s := range l.servers {
		out = append(out, s.info)
	}
	return out
}

func (l *Listener) listenLoop() {
	buf := make([]byte, 4096)
	for {
		select {
		case <-l.done:
			return
		default:
		}

		_ = l.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}

		var info ServerInfo
		if err := json.Unmarshal(buf[:n], &info); err != nil || info.Addr == "" {
			continue
		}

		l.mu.Lock()
		l.servers[info.Addr] = &seenServer{info: info, lastSeen: time.Now()}
		l.mu.Unlock()
	}
}

func (l *Listener) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for addr, s := range l.servers {
				if now.Sub(s.lastSeen) > ServerExpiry {
					delete(l.servers, addr)
				}
			}
			l.mu.Unlock()
		}
	}
}

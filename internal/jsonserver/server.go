package jsonserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/itsOwen/SteamDeckMotion/internal/monitoring"
	"github.com/itsOwen/SteamDeckMotion/internal/motion"
)

const (
	// DefaultPort is the well-known registration/streaming UDP port.
	DefaultPort = 27760
	// DefaultSendRateHz is the output stream rate, down from the ~250 Hz
	// producer rate.
	DefaultSendRateHz = 60
	// defaultRecvTimeout bounds each receive so the stop signal is honored
	// promptly.
	defaultRecvTimeout = 2 * time.Second
)

// PortEnvVar overrides DefaultPort when set. An unparseable value yields
// port 0, i.e. a kernel-assigned port; that quirk is kept for compatibility.
const PortEnvVar = "SDMOTION_SERVER_PORT"

// PortFromEnv resolves the UDP port to bind.
func PortFromEnv() int {
	v, ok := os.LookupEnv(PortEnvVar)
	if !ok {
		return DefaultPort
	}
	port, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return port
}

// MotionSource supplies motion samples to the send loop. sdgyro.Adapter
// implements it.
type MotionSource interface {
	Start(ctx context.Context) error
	Stop()
	ReadSample(out *motion.Sample) bool
}

// Config contains configuration options for the server.
type Config struct {
	// Port is the UDP port to bind on all IPv4 interfaces. Zero asks the
	// kernel for a free port.
	Port int
	// SendRateHz paces the output stream. Zero selects DefaultSendRateHz.
	SendRateHz int
	// ClientTimeout is the registration TTL. Zero selects
	// DefaultClientTimeout.
	ClientTimeout time.Duration
	// RecvTimeout bounds each registration receive. Zero selects two
	// seconds.
	RecvTimeout time.Duration
}

// Server owns the UDP socket and the two cooperating loops: the receive loop
// registers clients, the send loop broadcasts samples at the configured
// rate. The send loop starts lazily with the first registration and runs
// until the server stops.
type Server struct {
	cfg      Config
	source   MotionSource
	registry *Registry

	connMu sync.RWMutex
	conn   *net.UDPConn

	// sendMu serializes socket writes so concurrent broadcasts cannot
	// interleave datagrams.
	sendMu sync.Mutex
}

// New creates a Server streaming from source.
func New(source MotionSource, cfg Config) *Server {
	if cfg.SendRateHz <= 0 {
		cfg.SendRateHz = DefaultSendRateHz
	}
	if cfg.RecvTimeout <= 0 {
		cfg.RecvTimeout = defaultRecvTimeout
	}
	return &Server{
		cfg:      cfg,
		source:   source,
		registry: NewRegistry(cfg.ClientTimeout),
	}
}

// Registry exposes the client registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// LocalAddr returns the bound socket address, or nil before Run has bound
// it. Useful with a kernel-assigned port.
func (s *Server) LocalAddr() net.Addr {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Run binds the socket and serves until the context is cancelled. It returns
// ctx.Err() on orderly shutdown and a bind error on startup failure.
func (s *Server) Run(ctx context.Context) error {
	monitoring.Logf("JsonServer: Initializing.")

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: s.cfg.Port})
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on port %d: %w", s.cfg.Port, err)
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		conn.Close()
	}()

	monitoring.Logf("JsonServer: Socket created at %s.", conn.LocalAddr())

	// The send loop gets its own cancellation so the receive loop can stop
	// it and wait for it on the way out.
	sendCtx, stopSending := context.WithCancel(context.Background())
	defer stopSending()
	var sendWG sync.WaitGroup
	sendStarted := false

	monitoring.Logf("JsonServer: Start listening for clients.")

	buf := make([]byte, 512)
	for ctx.Err() == nil {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.RecvTimeout)); err != nil {
			monitoring.Logf("JsonServer: failed to set read deadline: %v", err)
		}

		_, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue // re-check the stop signal
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			monitoring.Logf("JsonServer: read error: %v", err)
			continue
		}

		// Any datagram registers the sender; the payload is irrelevant.
		monitoring.Debugf("JsonServer: Client registration from %s.", raddr)
		s.registry.Touch(raddr)

		if !sendStarted {
			sendStarted = true
			sendWG.Add(1)
			go func() {
				defer sendWG.Done()
				s.sendLoop(sendCtx)
			}()
			monitoring.Logf("JsonServer: Started sending motion data.")
		}

		s.registry.Sweep()
	}

	if sendStarted {
		monitoring.Debugf("JsonServer: Stopping send loop...")
	}
	stopSending()
	sendWG.Wait()
	monitoring.Logf("JsonServer: Stopped.")
	return ctx.Err()
}

// sendLoop pulls samples from the motion source and fans each one out to the
// registered clients, paced by an absolute-deadline scheduler so phase drift
// stays bounded regardless of producer jitter.
func (s *Server) sendLoop(ctx context.Context) {
	if err := s.source.Start(ctx); err != nil {
		monitoring.Logf("JsonServer: failed to start motion source: %v", err)
		return
	}
	defer s.source.Stop()

	monitoring.Debugf("JsonServer: Start broadcasting motion data.")

	interval := time.Second / time.Duration(s.cfg.SendRateHz)
	next := time.Now()

	var sample motion.Sample
	payload := make([]byte, 0, 256)

	for ctx.Err() == nil {
		if s.source.ReadSample(&sample) {
			payload = sample.AppendJSON(payload[:0])
			s.broadcast(payload)
		}

		// A skipped tick still advances the deadline.
		next = next.Add(interval)
		if d := time.Until(next); d > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		}
	}

	monitoring.Debugf("JsonServer: Stop broadcasting motion data.")
}

// broadcast sends one payload to every client in the current snapshot.
// Per-client send failures are swallowed; the client stays registered until
// its TTL lapses.
func (s *Server) broadcast(payload []byte) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return
	}
	for _, addr := range s.registry.Snapshot() {
		s.sendMu.Lock()
		_, _ = conn.WriteToUDP(payload, addr)
		s.sendMu.Unlock()
	}
}

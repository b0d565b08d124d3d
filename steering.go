package evisync

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	steeringDatagramSize = 512
)

// SteeringReading is one line of the companion app feed
type SteeringReading struct {
	// Azimuth in radians
	Azimuth float64
	// WithoutGyro is azimuth without gyroscope fusion, present in debug mode only
	WithoutGyro    float64
	HasWithoutGyro bool
	ReceivedAt     time.Time
}

// parseSteeringLine accepts "%.5f" or "%.5f,%.5f"
func parseSteeringLine(line string) (SteeringReading, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return SteeringReading{}, errors.New("Empty line")
	}
	parts := strings.Split(line, ",")
	if len(parts) > 2 {
		return SteeringReading{}, errors.Errorf("Too many values in '%s'", line)
	}
	azimuth, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return SteeringReading{}, errors.Wrapf(err, "Bad azimuth in '%s'", line)
	}
	reading := SteeringReading{Azimuth: azimuth}
	if len(parts) == 2 {
		withoutGyro, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return SteeringReading{}, errors.Wrapf(err, "Bad azimuth without gyro in '%s'", line)
		}
		reading.WithoutGyro = withoutGyro
		reading.HasWithoutGyro = true
	}
	return reading, nil
}

// SteeringListener receives steering readings over UDP and keeps the latest one
type SteeringListener struct {
	conn   net.PacketConn
	logger *log.Entry

	mu       sync.RWMutex
	latest   SteeringReading
	received bool
}

// ListenSteering binds UDP address, e.g. ":15006"
func ListenSteering(address string, logger *log.Entry) (*SteeringListener, error) {
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't listen for steering on '%s'", address)
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &SteeringListener{
		conn:   conn,
		logger: logger.WithField("steering", conn.LocalAddr().String()),
	}, nil
}

// Addr returns bound address
func (listener *SteeringListener) Addr() net.Addr {
	return listener.conn.LocalAddr()
}

// Run reads datagrams until context is done. Connection is closed on return
func (listener *SteeringListener) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		listener.conn.Close()
	}()
	buf := make([]byte, steeringDatagramSize)
	for {
		n, _, err := listener.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "Can't read steering datagram")
		}
		listener.handleDatagram(string(buf[:n]))
	}
}

func (listener *SteeringListener) handleDatagram(datagram string) {
	for _, line := range strings.Split(datagram, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		reading, err := parseSteeringLine(line)
		if err != nil {
			listener.logger.WithError(err).Debug("Skip malformed steering line")
			continue
		}
		reading.ReceivedAt = time.Now()
		listener.mu.Lock()
		listener.latest = reading
		listener.received = true
		listener.mu.Unlock()
	}
}

// Latest returns the most recent reading. False until the first one arrives
func (listener *SteeringListener) Latest() (SteeringReading, bool) {
	listener.mu.RLock()
	defer listener.mu.RUnlock()
	return listener.latest, listener.received
}

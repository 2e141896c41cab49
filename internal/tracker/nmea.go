package tracker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/jengzang/spotmap-go/internal/models"
)

// NMEAProvider reads a GPS receiver on a serial port. RMC sentences give the
// position; HDT gives the heading, with VTG track as a fallback for receivers
// without a heading sensor.
type NMEAProvider struct {
	opts   serial.OpenOptions
	open   func(serial.OpenOptions) (io.ReadWriteCloser, error)
	logger *zap.Logger
	feed   *feed

	mu      sync.Mutex
	port    io.ReadWriteCloser
	done    chan struct{}
	sawTrue bool
}

// NewNMEAProvider configures a provider for portName at baud
func NewNMEAProvider(portName string, baud int, logger *zap.Logger) *NMEAProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NMEAProvider{
		opts: serial.OpenOptions{
			PortName:              portName,
			BaudRate:              uint(baud),
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       1,
			ParityMode:            serial.PARITY_NONE,
			InterCharacterTimeout: 0,
		},
		open:   serial.Open,
		logger: logger,
		feed:   newFeed(),
	}
}

// RequestPermission opens the serial port. A port that cannot be opened is
// reported as a denied permission.
func (p *NMEAProvider) RequestPermission(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	port, err := p.open(p.opts)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrPermissionDenied, p.opts.PortName, err)
	}
	p.port = port
	p.done = make(chan struct{})
	p.logger.Info("GPS serial port opened",
		zap.String("port", p.opts.PortName), zap.Uint("baud", p.opts.BaudRate))

	go p.read(port, p.done)
	return nil
}

func (p *NMEAProvider) CurrentPosition(ctx context.Context) (models.Position, error) {
	return p.feed.currentPosition(ctx)
}

func (p *NMEAProvider) SubscribePosition(ctx context.Context, fn func(models.Position)) error {
	return p.feed.subscribePosition(ctx, fn)
}

func (p *NMEAProvider) SubscribeHeading(ctx context.Context, fn func(float64)) error {
	return p.feed.subscribeHeading(ctx, fn)
}

// Close closes the port and waits for the reader to stop
func (p *NMEAProvider) Close() error {
	p.mu.Lock()
	port, done := p.port, p.done
	p.port = nil
	p.mu.Unlock()
	if port == nil {
		return nil
	}
	err := port.Close()
	<-done
	return err
}

func (p *NMEAProvider) read(r io.Reader, done chan struct{}) {
	defer close(done)

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			p.handleLine(line)
		}
		if err != nil {
			if err != io.EOF {
				p.logger.Debug("GPS read stopped", zap.Error(err))
			}
			return
		}
	}
}

func (p *NMEAProvider) handleLine(line string) {
	line = strings.TrimSpace(line)
	// NMEA sentences start with '$'
	if !strings.HasPrefix(line, "$") {
		return
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy receivers emit partial sentences
		p.logger.Debug("NMEA parse error", zap.Error(err), zap.String("line", line))
		return
	}

	switch m := sentence.(type) {
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return
		}
		p.feed.publishPosition(models.Position{
			Latitude:   m.Latitude,
			Longitude:  m.Longitude,
			SpeedKnots: m.Speed,
			CourseDeg:  m.Course,
			Time:       fixTime(m.Date, m.Time),
		})
	case nmea.HDT:
		p.mu.Lock()
		p.sawTrue = true
		p.mu.Unlock()
		p.feed.publishHeading(m.Heading)
	case nmea.VTG:
		p.mu.Lock()
		sawTrue := p.sawTrue
		p.mu.Unlock()
		// track over ground is meaningless when stationary
		if !sawTrue && m.GroundSpeedKnots > 0 {
			p.feed.publishHeading(m.TrueTrack)
		}
	}
}

func fixTime(d nmea.Date, t nmea.Time) time.Time {
	if !d.Valid || !t.Valid {
		return time.Now().UTC()
	}
	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}
	return time.Date(year, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

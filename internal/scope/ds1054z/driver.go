// Package ds1054z drives Rigol DS1000Z series oscilloscopes with SCPI over a raw TCP socket.
package ds1054z

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jupitervolta/ds1054z/internal/scope"
)

// DefaultPort is the instrument's raw SCPI socket.
const DefaultPort = "5555"

// rawChunk is the largest BYTE-format read the instrument allows per :WAV:DATA?.
const rawChunk = 250000

// Options tunes the connection.
type Options struct {
	DialTimeout time.Duration
	IOTimeout   time.Duration
	Logger      zerolog.Logger
}

// Driver implements scope.Device for a DS1054Z.
type Driver struct {
	scope.Base

	conn      net.Conn
	reader    *bufio.Reader
	ioTimeout time.Duration
	logger    zerolog.Logger
}

// Compile-time assertion that Driver implements scope.Device
var _ scope.Device = (*Driver)(nil)

// Dial connects to the instrument. A bare host gets DefaultPort.
func Dial(ctx context.Context, address string, opts Options) (*Driver, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultPort)
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 5 * time.Second
	}

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, scope.NormalizeInstrumentError(fmt.Errorf("dial %s: %w", address, err), "")
	}

	d := &Driver{
		Base: scope.Base{
			Model:   "DS1054Z",
			Address: address,
			Status:  "online",
		},
		conn:      conn,
		reader:    bufio.NewReaderSize(conn, 64*1024),
		ioTimeout: opts.IOTimeout,
		logger:    opts.Logger.With().Str("instrument", address).Logger(),
	}

	return d, nil
}

// begin arms the I/O deadline for one exchange and ties it to ctx cancellation.
func (d *Driver) begin(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(d.ioTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := d.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = d.conn.SetDeadline(time.Now())
	})
	return func() { stop() }, nil
}

func (d *Driver) fail(err error, cmd string) error {
	normalized := scope.NormalizeInstrumentError(err, cmd)
	if scope.IsFatal(normalized) {
		d.SetStatus("offline")
	}
	d.logger.Debug().Err(normalized).Str("cmd", cmd).Msg("SCPI exchange failed")
	return normalized
}

func (d *Driver) send(cmd string) error {
	d.logger.Debug().Str("cmd", cmd).Msg("SCPI write")
	_, err := d.conn.Write([]byte(cmd + "\n"))
	return err
}

// Write sends a command that produces no reply.
func (d *Driver) Write(ctx context.Context, cmd string) error {
	done, err := d.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := d.send(cmd); err != nil {
		return d.fail(err, cmd)
	}
	return nil
}

// Query sends a command and reads one newline-terminated reply.
func (d *Driver) Query(ctx context.Context, query string) (string, error) {
	done, err := d.begin(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	if err := d.send(query); err != nil {
		return "", d.fail(err, query)
	}
	line, err := d.reader.ReadString('\n')
	if err != nil {
		return "", d.fail(err, query)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// queryBlock sends a command whose reply is a definite-length block.
func (d *Driver) queryBlock(ctx context.Context, query string) ([]byte, error) {
	done, err := d.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	if err := d.send(query); err != nil {
		return nil, d.fail(err, query)
	}
	data, err := readBlock(d.reader)
	if err != nil {
		return nil, d.fail(err, query)
	}
	return data, nil
}

// Single arms a single-shot acquisition.
func (d *Driver) Single(ctx context.Context) error {
	return d.Write(ctx, ":SINGle")
}

// ForceTrigger forces a trigger event.
func (d *Driver) ForceTrigger(ctx context.Context) error {
	return d.Write(ctx, ":TFORce")
}

// TriggerStatus reads :TRIGger:STATus?.
func (d *Driver) TriggerStatus(ctx context.Context) (scope.TriggerStatus, error) {
	raw, err := d.Query(ctx, ":TRIGger:STATus?")
	if err != nil {
		return "", err
	}
	return scope.ParseTriggerStatus(raw), nil
}

// GetAttr reads an attribute from the shared table.
func (d *Driver) GetAttr(ctx context.Context, name string) (any, error) {
	attr, err := scope.LookupAttr(name)
	if err != nil {
		return nil, err
	}

	if name == scope.AttrDisplayedChannels {
		return d.DisplayedChannels(ctx)
	}

	raw, err := d.Query(ctx, attr.Query)
	if err != nil {
		return nil, err
	}
	return attr.Parse(raw)
}

// SetAttr writes an attribute from the shared table.
func (d *Driver) SetAttr(ctx context.Context, name string, value any) error {
	attr, err := scope.LookupAttr(name)
	if err != nil {
		return err
	}
	cmd, err := attr.SetCommand(value)
	if err != nil {
		return err
	}
	return d.Write(ctx, cmd)
}

// HasAttr consults the shared attribute table.
func (d *Driver) HasAttr(name string) bool {
	return scope.HasAttr(name)
}

// DisplayedChannels polls the display flag of the four analog channels.
func (d *Driver) DisplayedChannels(ctx context.Context) ([]string, error) {
	var channels []string
	for n := 1; n <= 4; n++ {
		raw, err := d.Query(ctx, fmt.Sprintf(":CHANnel%d:DISPlay?", n))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw) == "1" {
			channels = append(channels, scope.ChannelName(n))
		}
	}
	return channels, nil
}

// selectSource points the waveform subsystem at a channel and reads its preamble.
func (d *Driver) selectSource(ctx context.Context, channel, mode string) (Preamble, error) {
	for _, cmd := range []string{
		":WAVeform:SOURce " + channel,
		":WAVeform:MODE " + mode,
		":WAVeform:FORMat BYTE",
	} {
		if err := d.Write(ctx, cmd); err != nil {
			return Preamble{}, err
		}
	}

	raw, err := d.Query(ctx, ":WAVeform:PREamble?")
	if err != nil {
		return Preamble{}, err
	}
	pre, err := ParsePreamble(raw)
	if err != nil {
		return Preamble{}, d.fail(err, ":WAVeform:PREamble?")
	}
	return pre, nil
}

// WaveformSamples reads a channel in BYTE format and converts it with the preamble.
// RAW mode reads memory in chunks because one transfer is capped.
func (d *Driver) WaveformSamples(ctx context.Context, channel, mode string) ([]float64, error) {
	pre, err := d.selectSource(ctx, channel, mode)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(mode, scope.ModeRaw) {
		data, err := d.queryBlock(ctx, ":WAVeform:DATA?")
		if err != nil {
			return nil, err
		}
		return pre.Volts(data), nil
	}

	raw := make([]byte, 0, pre.Points)
	for start := 1; start <= pre.Points; start += rawChunk {
		stop := start + rawChunk - 1
		if stop > pre.Points {
			stop = pre.Points
		}
		if err := d.Write(ctx, fmt.Sprintf(":WAVeform:STARt %d", start)); err != nil {
			return nil, err
		}
		if err := d.Write(ctx, fmt.Sprintf(":WAVeform:STOP %d", stop)); err != nil {
			return nil, err
		}
		chunk, err := d.queryBlock(ctx, ":WAVeform:DATA?")
		if err != nil {
			return nil, err
		}
		raw = append(raw, chunk...)
	}
	return pre.Volts(raw), nil
}

// TimeAxis derives the sample times from the current source's preamble.
func (d *Driver) TimeAxis(ctx context.Context, mode string) ([]float64, error) {
	if err := d.Write(ctx, ":WAVeform:MODE "+mode); err != nil {
		return nil, err
	}
	raw, err := d.Query(ctx, ":WAVeform:PREamble?")
	if err != nil {
		return nil, err
	}
	pre, err := ParsePreamble(raw)
	if err != nil {
		return nil, d.fail(err, ":WAVeform:PREamble?")
	}
	return pre.Times(), nil
}

// DisplayData captures the screen as a colour PNG.
func (d *Driver) DisplayData(ctx context.Context) ([]byte, error) {
	return d.queryBlock(ctx, ":DISPlay:DATA? ON,OFF,PNG")
}

// Close closes the socket.
func (d *Driver) Close() error {
	d.SetStatus("offline")
	return d.conn.Close()
}

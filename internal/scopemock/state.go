package scopemock

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Response is the emulator's answer to one program message.
// Commands produce no reply; queries produce either text or a block.
type Response struct {
	Reply bool
	Text  string
	Block []byte
}

// Bytes renders the response as it goes on the wire.
func (r Response) Bytes() []byte {
	if !r.Reply {
		return nil
	}
	if r.Block != nil {
		return EncodeBlock(r.Block)
	}
	return []byte(r.Text + "\n")
}

// Command is one queued program message.
type Command struct {
	Line      string
	Response  chan Response
	Timestamp time.Time
}

// Stats counts trigger-related commands for assertions.
type Stats struct {
	Singles      int
	Forces       int
	StatusReads  int
	DataReads    int
	DisplayReads int
}

// State is the emulated instrument. A single worker applies commands in arrival order.
type State struct {
	mu       sync.RWMutex
	cfg      InstrumentConfig
	settings map[string]string

	armDelay    time.Duration
	triggerHold time.Duration
	armed       bool
	armedAt     time.Time
	forcedAt    time.Time
	stopped     bool

	source    string
	mode      string
	start     int
	stop      int
	display   []byte
	lastError string
	stats     Stats
	now       func() time.Time

	commandQueue chan Command
	stopChan     chan struct{}
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewState starts the emulator worker.
func NewState(cfg *Config) *State {
	ctx, cancel := context.WithCancel(context.Background())

	s := &State{
		cfg:          cfg.Instrument,
		armDelay:     time.Duration(cfg.Timing.ArmDelayMs) * time.Millisecond,
		triggerHold:  time.Duration(cfg.Timing.TriggerHoldMs) * time.Millisecond,
		now:          time.Now,
		commandQueue: make(chan Command, 100),
		stopChan:     make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	s.reset()

	s.wg.Add(1)
	go s.commandWorker()

	return s
}

func (s *State) reset() {
	s.settings = map[string]string{
		":TIM:MAIN:SCAL": "5.000000e-05",
		":TIM:MAIN:OFFS": "0.000000e+00",
		":TIM:MODE":      "MAIN",
		":ACQ:MDEP":      "AUTO",
		":ACQ:TYPE":      "NORM",
		":TRIG:MODE":     "EDGE",
		":TRIG:SWE":      "AUTO",
		":TRIG:EDGE:LEV": "0.000000e+00",
		":WAV:FORM":      "BYTE",
	}
	for n := 1; n <= 4; n++ {
		s.settings[fmt.Sprintf(":CHAN%d:DISP", n)] = "0"
	}
	for _, n := range s.cfg.Channels {
		s.settings[fmt.Sprintf(":CHAN%d:DISP", n)] = "1"
	}

	s.armed = false
	s.stopped = false
	s.source = "CHAN1"
	s.mode = "NORM"
	s.start = 1
	s.stop = s.cfg.Points
	s.lastError = ""
}

func (s *State) commandWorker() {
	defer s.wg.Done()

	for {
		select {
		case cmd := <-s.commandQueue:
			cmd.Response <- s.processCommand(cmd)
		case <-s.stopChan:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

// ExecuteCommand queues a program message and waits for its response.
func (s *State) ExecuteCommand(line string) Response {
	response := make(chan Response, 1)
	cmd := Command{
		Line:      line,
		Response:  response,
		Timestamp: time.Now(),
	}

	select {
	case s.commandQueue <- cmd:
		select {
		case resp := <-response:
			return resp
		case <-s.ctx.Done():
			return Response{}
		}
	case <-time.After(5 * time.Second):
		return Response{}
	case <-s.ctx.Done():
		return Response{}
	}
}

// Snapshot returns the command counters.
func (s *State) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *State) processCommand(cmd Command) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := ParseRequest(cmd.Line)
	if req.Header == "" {
		return Response{}
	}

	switch req.Header {
	case "*IDN":
		return s.text(req, s.cfg.IDN)
	case "*RST":
		s.reset()
	case "*CLS", ":CLE":
		s.lastError = ""
	case ":SYST:ERR":
		if s.lastError == "" {
			return s.text(req, `0,"No error"`)
		}
		msg := s.lastError
		s.lastError = ""
		return s.text(req, msg)
	case ":SING":
		s.stats.Singles++
		s.armed = true
		s.stopped = false
		s.armedAt = s.now()
		s.forcedAt = time.Time{}
	case ":TFOR":
		s.stats.Forces++
		if s.armed && s.forcedAt.IsZero() {
			s.forcedAt = s.now()
		}
	case ":RUN":
		s.armed = false
		s.stopped = false
	case ":STOP":
		s.stopped = true
	case ":TRIG:STAT":
		s.stats.StatusReads++
		return s.text(req, s.triggerStatus())
	case ":ACQ:SRAT":
		return s.text(req, fmt.Sprintf("%e", s.cfg.SampleRate))
	case ":WAV:SOUR":
		if !req.Query {
			s.source = shortHeader(req.Args)
		}
		return s.text(req, s.source)
	case ":WAV:MODE":
		if !req.Query {
			s.mode = shortMnemonic(strings.ToUpper(req.Args))
		}
		return s.text(req, s.mode)
	case ":WAV:STAR":
		if !req.Query {
			s.start = s.parseIndex(req.Args, s.start)
		}
		return s.text(req, strconv.Itoa(s.start))
	case ":WAV:STOP":
		if !req.Query {
			s.stop = s.parseIndex(req.Args, s.stop)
		}
		return s.text(req, strconv.Itoa(s.stop))
	case ":WAV:PRE":
		return s.text(req, s.preamble())
	case ":WAV:DATA":
		if !req.Query {
			break
		}
		s.stats.DataReads++
		return Response{Reply: true, Block: s.waveformData()}
	case ":DISP:DATA":
		if !req.Query {
			break
		}
		s.stats.DisplayReads++
		return Response{Reply: true, Block: s.displayPNG()}
	default:
		return s.generic(req)
	}

	return Response{}
}

func (s *State) text(req Request, value string) Response {
	if !req.Query {
		return Response{}
	}
	return Response{Reply: true, Text: value}
}

// generic stores settings and echoes them back on query.
// Unknown queries are silently dropped, as the instrument does.
func (s *State) generic(req Request) Response {
	if !req.Query {
		value := req.Args
		if strings.HasSuffix(req.Header, ":DISP") {
			switch strings.ToUpper(value) {
			case "ON", "1":
				value = "1"
			default:
				value = "0"
			}
		}
		s.settings[req.Header] = value
		return Response{}
	}

	value, ok := s.settings[req.Header]
	if !ok {
		s.lastError = `-113,"Undefined header"`
		return Response{}
	}
	return Response{Reply: true, Text: value}
}

func (s *State) parseIndex(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 1 {
		s.lastError = `-224,"Illegal parameter value"`
		return fallback
	}
	return v
}

// triggerStatus walks WAIT, TD, STOP after :SINGle. :TFORce fires immediately.
func (s *State) triggerStatus() string {
	if s.stopped {
		return "STOP"
	}
	if !s.armed {
		return "RUN"
	}

	fireAt := s.armedAt.Add(s.armDelay)
	if !s.forcedAt.IsZero() && s.forcedAt.Before(fireAt) {
		fireAt = s.forcedAt
	}

	now := s.now()
	switch {
	case now.Before(fireAt):
		return "WAIT"
	case now.Before(fireAt.Add(s.triggerHold)):
		return "TD"
	default:
		return "STOP"
	}
}

func (s *State) points() int {
	if s.mode == "RAW" {
		return s.cfg.RawPoints
	}
	return s.cfg.Points
}

func (s *State) timebase() (scale, offset float64) {
	scale, err := strconv.ParseFloat(s.settings[":TIM:MAIN:SCAL"], 64)
	if err != nil || scale <= 0 {
		scale = 50e-6
	}
	offset, _ = strconv.ParseFloat(s.settings[":TIM:MAIN:OFFS"], 64)
	return scale, offset
}

// Vertical scaling shared by the preamble and the generated samples.
const (
	yIncrement = 0.04
	yReference = 127
)

func (s *State) preamble() string {
	points := s.points()
	scale, offset := s.timebase()
	xinc := scale * 12 / float64(points)
	xorigin := offset - scale*6

	typ := 0
	switch s.mode {
	case "MAX":
		typ = 1
	case "RAW":
		typ = 2
	}

	return fmt.Sprintf("0,%d,%d,1,%e,%e,0,%e,0,%d", typ, points, xinc, xorigin, yIncrement, yReference)
}

// waveformData synthesizes one sine per channel with a per-channel phase.
func (s *State) waveformData() []byte {
	points := s.points()
	first, last := 1, points
	if s.mode == "RAW" {
		first, last = s.start, s.stop
		if last > points {
			last = points
		}
		if first > last {
			return []byte{}
		}
	}

	channel := 1
	if strings.HasPrefix(s.source, "CHAN") {
		if n, err := strconv.Atoi(strings.TrimPrefix(s.source, "CHAN")); err == nil {
			channel = n
		}
	}
	phase := float64(channel-1) * math.Pi / 2

	data := make([]byte, 0, last-first+1)
	for i := first - 1; i < last; i++ {
		v := yReference + 100*math.Sin(2*math.Pi*3*float64(i)/float64(points)+phase)
		data = append(data, byte(math.Max(0, math.Min(255, math.Round(v)))))
	}
	return data
}

// displayPNG renders a small screen with a grid and the CH1 trace.
func (s *State) displayPNG() []byte {
	if s.display != nil {
		return s.display
	}

	const w, h = 160, 96
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if x%20 == 0 || y%12 == 0 {
				c = color.RGBA{R: 60, G: 60, B: 60, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	for x := 0; x < w; x++ {
		y := h/2 - int(float64(h/3)*math.Sin(2*math.Pi*3*float64(x)/w))
		img.Set(x, y, color.RGBA{R: 255, G: 255, A: 255})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	s.display = buf.Bytes()
	return s.display
}

// Close stops the worker.
func (s *State) Close() error {
	s.cancel()

	select {
	case <-s.stopChan:
		return nil
	default:
		close(s.stopChan)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("shutdown timeout")
	}
}

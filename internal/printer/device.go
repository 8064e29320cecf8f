package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hennedo/escpos"
)

// Vendor result codes reported through the job-completion callback.
const (
	CodeOK           = "OK"
	CodeCoverOpen    = "COVER_OPEN"
	CodePaperEnd     = "PAPER_END"
	CodeWriteFailed  = "WRITE_FAILED"
	CodeTimeout      = "TIMEOUT"
	CodeDisconnected = "DISCONNECTED"
)

// JobResult is the asynchronous outcome of one Send.
type JobResult struct {
	JobID   string `json:"job_id"`
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Events carries the device callbacks a session registers when the logical
// device is created: job completion plus cover and paper notices. Any
// callback may be nil.
type Events struct {
	OnReceive      func(JobResult)
	OnCoverOpen    func()
	OnCoverOK      func()
	OnPaperEnd     func()
	OnPaperNearEnd func()
	OnPaperOK      func()
}

// Device is the narrow capability set this subsystem needs from a receipt
// printer: open with callbacks, play a job, close. Job outcomes always
// arrive through OnReceive, never as a return value.
type Device interface {
	Open(ev Events) error
	Send(job *Job)
	Close() error
}

// ESCPOSDevice drives an ESC/POS printer over a Transport. Faults are
// observed by polling the printer's real-time status channel when the
// transport supports it; a job is deemed failed when the flush errors or
// the post-flush status reports a fault.
type ESCPOSDevice struct {
	transport Transport
	events    Events

	mu         sync.Mutex
	coverOpen  bool
	paperEnd   bool
	paperNear  bool
	pollCancel context.CancelFunc
}

// NewESCPOSDevice wraps a transport as a logical printer device.
func NewESCPOSDevice(t Transport) *ESCPOSDevice {
	return &ESCPOSDevice{transport: t}
}

// Open initializes the printer and registers callbacks. When the transport
// can answer status queries, a background poller watches for cover and
// paper transitions.
func (d *ESCPOSDevice) Open(ev Events) error {
	d.events = ev

	// ESC @ resets the printer to a known state.
	if _, err := d.transport.Write([]byte{0x1B, '@'}); err != nil {
		return fmt.Errorf("failed to initialize printer: %w", err)
	}

	if _, ok := d.transport.(StatusQuerier); ok {
		ctx, cancel := context.WithCancel(context.Background())
		d.pollCancel = cancel
		go d.pollStatus(ctx, 2*time.Second)
	}

	return nil
}

// Send plays a job's instructions and reports the outcome through the
// OnReceive callback. It never blocks the caller.
func (d *ESCPOSDevice) Send(job *Job) {
	go func() {
		if err := d.play(job); err != nil {
			d.receive(JobResult{JobID: job.ID, Success: false, Code: CodeWriteFailed, Message: err.Error()})
			return
		}

		// Faults are reported, not pre-validated: the job is streamed
		// regardless and judged by the printer's own status afterwards.
		if code, ok := d.faultCode(); ok {
			d.receive(JobResult{JobID: job.ID, Success: false, Code: code})
			return
		}

		d.receive(JobResult{JobID: job.ID, Success: true, Code: CodeOK})
	}()
}

func (d *ESCPOSDevice) play(job *Job) error {
	p := escpos.New(d.transport)

	width, height := 1, 1
	bold := false
	justify := escpos.JustifyLeft

	for _, ins := range job.Instructions {
		switch ins.Op {
		case OpAlign:
			switch ins.Align {
			case AlignCenter:
				justify = escpos.JustifyCenter
			case AlignRight:
				justify = escpos.JustifyRight
			default:
				justify = escpos.JustifyLeft
			}
		case OpSize:
			width, height = ins.Width, ins.Height
		case OpStyle:
			bold = ins.Bold
		case OpText:
			if _, err := p.Bold(bold).Size(uint8(width), uint8(height)).Justify(justify).Write(ins.Text); err != nil {
				return err
			}
			p.LineFeed()
		case OpFeed:
			for i := 0; i < ins.Lines; i++ {
				p.LineFeed()
			}
		case OpCut:
			if err := p.PrintAndCut(); err != nil {
				return err
			}
		}
	}

	return nil
}

// faultCode refreshes the fault flags and returns the dominant fault, if any.
func (d *ESCPOSDevice) faultCode() (string, bool) {
	sq, ok := d.transport.(StatusQuerier)
	if ok {
		d.refreshStatus(sq)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.paperEnd {
		return CodePaperEnd, true
	}
	if d.coverOpen {
		return CodeCoverOpen, true
	}
	return "", false
}

func (d *ESCPOSDevice) receive(res JobResult) {
	if d.events.OnReceive != nil {
		d.events.OnReceive(res)
	}
}

// pollStatus watches cover and paper state and fires transition callbacks,
// mirroring the event stream a native printer SDK would deliver.
func (d *ESCPOSDevice) pollStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sq, ok := d.transport.(StatusQuerier)
			if !ok {
				return
			}
			d.refreshStatus(sq)
		}
	}
}

func (d *ESCPOSDevice) refreshStatus(sq StatusQuerier) {
	offline, err := sq.QueryStatus(StatusOffline)
	if err != nil {
		return
	}
	paper, err := sq.QueryStatus(StatusPaper)
	if err != nil {
		return
	}

	d.mu.Lock()
	prevCover, prevEnd, prevNear := d.coverOpen, d.paperEnd, d.paperNear
	d.coverOpen = offline&maskCoverOpen != 0
	d.paperEnd = paper&maskPaperEnd != 0
	d.paperNear = paper&maskPaperNearEnd != 0
	cover, end, near := d.coverOpen, d.paperEnd, d.paperNear
	d.mu.Unlock()

	switch {
	case cover && !prevCover:
		if d.events.OnCoverOpen != nil {
			d.events.OnCoverOpen()
		}
	case !cover && prevCover:
		if d.events.OnCoverOK != nil {
			d.events.OnCoverOK()
		}
	}

	switch {
	case end && !prevEnd:
		if d.events.OnPaperEnd != nil {
			d.events.OnPaperEnd()
		}
	case near && !prevNear:
		if d.events.OnPaperNearEnd != nil {
			d.events.OnPaperNearEnd()
		}
	case !end && !near && (prevEnd || prevNear):
		if d.events.OnPaperOK != nil {
			d.events.OnPaperOK()
		}
	}
}

// Close stops the status poller and tears down the transport.
func (d *ESCPOSDevice) Close() error {
	if d.pollCancel != nil {
		d.pollCancel()
	}
	return d.transport.Close()
}

package printer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Session lifecycle states.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateReady        State = "ready"
	StateBusy         State = "busy"
)

// Sentinel errors for session operations.
var (
	ErrConnectFailed = errors.New("printer connection failed")
	ErrNotReady      = errors.New("printer is not ready")
)

// Endpoint describes how to reach a printer. Transport selects which of the
// remaining fields are used.
type Endpoint struct {
	Transport string `json:"transport"` // network, serial, usb, memory
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
	Device    string `json:"device,omitempty"` // serial device path
	Baud      int    `json:"baud,omitempty"`
	VendorID  uint16 `json:"vendor_id,omitempty"`
	ProductID uint16 `json:"product_id,omitempty"`
}

// NewDevice opens the endpoint's transport and wraps it as a logical
// device. The memory transport needs no hardware and is used for dry runs.
func NewDevice(ep Endpoint) (Device, error) {
	switch ep.Transport {
	case "network":
		t, err := DialNetwork(ep.Host, ep.Port)
		if err != nil {
			return nil, err
		}
		return NewESCPOSDevice(t), nil
	case "serial":
		t, err := OpenSerial(ep.Device, ep.Baud)
		if err != nil {
			return nil, err
		}
		return NewESCPOSDevice(t), nil
	case "usb":
		t, err := OpenUSB(ep.VendorID, ep.ProductID)
		if err != nil {
			return nil, err
		}
		return NewESCPOSDevice(t), nil
	case "memory":
		return NewMemDevice(), nil
	default:
		return nil, fmt.Errorf("unknown printer transport: %q", ep.Transport)
	}
}

// Notice is a cover or paper event forwarded from the device.
type Notice string

const (
	NoticeCoverOpen    Notice = "cover_open"
	NoticeCoverOK      Notice = "cover_ok"
	NoticePaperEnd     Notice = "paper_end"
	NoticePaperNearEnd Notice = "paper_near_end"
	NoticePaperOK      Notice = "paper_ok"
)

// Session owns the connection to one printer and serializes job delivery
// through it. One job is in flight at a time; its outcome is delivered on
// the channel Send returns.
type Session struct {
	dial       func(Endpoint) (Device, error)
	jobTimeout time.Duration
	logger     *slog.Logger
	onNotice   func(Notice)

	mu       sync.Mutex
	state    State
	device   Device
	endpoint Endpoint
	pending  *pendingJob
}

type pendingJob struct {
	job     *Job
	result  chan JobResult
	timeout *time.Timer
	done    bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDialer replaces the endpoint dialer.
func WithDialer(dial func(Endpoint) (Device, error)) SessionOption {
	return func(s *Session) { s.dial = dial }
}

// WithJobTimeout overrides the per-job completion deadline.
func WithJobTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.jobTimeout = d }
}

// WithNoticeHandler registers a callback for cover and paper notices.
func WithNoticeHandler(fn func(Notice)) SessionOption {
	return func(s *Session) { s.onNotice = fn }
}

// NewSession creates a disconnected session.
func NewSession(logger *slog.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		dial:       NewDevice,
		jobTimeout: 60 * time.Second,
		logger:     logger,
		state:      StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Endpoint returns the endpoint of the current connection. Only meaningful
// while connected.
func (s *Session) Endpoint() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// Connect dials the endpoint and opens the device. It is only valid from
// the disconnected state; a failed attempt returns the session to
// disconnected and reports ErrConnectFailed. There is no automatic retry.
func (s *Session) Connect(ep Endpoint) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		state := s.state
		s.mu.Unlock()
		return errors.Newf("cannot connect while %s", state)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	s.logger.Info("🔌 Connecting to printer", "transport", ep.Transport, "host", ep.Host, "port", ep.Port)

	dev, err := s.dial(ep)
	if err == nil {
		err = dev.Open(Events{
			OnReceive:      s.handleResult,
			OnCoverOpen:    func() { s.notify(NoticeCoverOpen) },
			OnCoverOK:      func() { s.notify(NoticeCoverOK) },
			OnPaperEnd:     func() { s.notify(NoticePaperEnd) },
			OnPaperNearEnd: func() { s.notify(NoticePaperNearEnd) },
			OnPaperOK:      func() { s.notify(NoticePaperOK) },
		})
		if err != nil {
			dev.Close()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateDisconnected
		s.logger.Error("❌ Printer connection failed", "error", err)
		return errors.Mark(errors.Wrap(err, "connect printer"), ErrConnectFailed)
	}

	s.device = dev
	s.endpoint = ep
	s.state = StateReady
	s.logger.Info("✅ Printer connected", "transport", ep.Transport)

	return nil
}

// Send delivers a job to the printer and returns a channel that yields
// exactly one result: the device's report, or a synthesized timeout or
// disconnect failure. Valid only from the ready state.
func (s *Session) Send(job *Job) (<-chan JobResult, error) {
	s.mu.Lock()

	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return nil, errors.Mark(errors.Newf("printer is %s", state), ErrNotReady)
	}

	job.SubmittedAt = time.Now()
	p := &pendingJob{
		job:    job,
		result: make(chan JobResult, 1),
	}
	p.timeout = time.AfterFunc(s.jobTimeout, func() {
		s.completePending(job.ID, JobResult{
			JobID:   job.ID,
			Success: false,
			Code:    CodeTimeout,
			Message: "printer did not report a result in time",
		})
	})
	s.pending = p
	s.state = StateBusy
	dev := s.device
	s.mu.Unlock()

	s.logger.Info("🖨️ Sending print job", "job_id", job.ID, "order_id", job.OrderID, "ticket_no", job.TicketNo)
	dev.Send(job)

	return p.result, nil
}

// handleResult is the device's OnReceive callback.
func (s *Session) handleResult(res JobResult) {
	s.completePending(res.JobID, res)
}

// completePending resolves the in-flight job, if it matches, and returns
// the session to ready. Failure results do not tear the session down; the
// connection is presumed intact unless Disconnect says otherwise.
func (s *Session) completePending(jobID string, res JobResult) {
	s.mu.Lock()
	p := s.pending
	if p == nil || p.done || p.job.ID != jobID {
		s.mu.Unlock()
		return
	}
	p.done = true
	p.timeout.Stop()
	s.pending = nil
	if s.state == StateBusy {
		s.state = StateReady
	}
	s.mu.Unlock()

	if res.Success {
		s.logger.Info("✅ Print job completed", "job_id", res.JobID)
	} else {
		s.logger.Warn("⚠️ Print job failed", "job_id", res.JobID, "code", res.Code, "message", res.Message)
	}

	p.result <- res
}

func (s *Session) notify(n Notice) {
	s.logger.Info("📣 Printer notice", "notice", string(n))
	if s.onNotice != nil {
		s.onNotice(n)
	}
}

// Disconnect closes the device, failing any in-flight job. It is valid
// from any state and always leaves the session disconnected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	dev := s.device
	p := s.pending
	if p != nil && !p.done {
		p.done = true
		p.timeout.Stop()
	} else {
		p = nil
	}
	s.device = nil
	s.pending = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if p != nil {
		p.result <- JobResult{
			JobID:   p.job.ID,
			Success: false,
			Code:    CodeDisconnected,
			Message: "printer disconnected while job was in flight",
		}
	}

	if dev != nil {
		if err := dev.Close(); err != nil {
			s.logger.Warn("⚠️ Error closing printer device", "error", err)
		}
	}

	s.logger.Info("🔌 Printer disconnected")
}

package printer

import "sync"

// MemDevice is an in-memory Device for dry-run mode and tests. Jobs are
// recorded instead of printed, and fault conditions can be scripted.
type MemDevice struct {
	mu       sync.Mutex
	events   Events
	opened   bool
	closed   bool
	jobs     []*Job
	failNext string // result code to fail the next job with, "" for success
	openErr  error
	silent   bool // swallow jobs without reporting any result
}

// NewMemDevice returns an idle in-memory device.
func NewMemDevice() *MemDevice {
	return &MemDevice{}
}

// FailNext makes the next Send report a failure with the given code.
func (d *MemDevice) FailNext(code string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = code
}

// FailOpen makes Open return the given error.
func (d *MemDevice) FailOpen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

// Silence makes the device accept jobs without ever reporting a result,
// simulating a printer that stops answering mid-job.
func (d *MemDevice) Silence() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silent = true
}

// CoverOpen fires the cover-open callback, as a printer with its lid
// lifted would.
func (d *MemDevice) CoverOpen() {
	d.mu.Lock()
	fn := d.events.OnCoverOpen
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// CoverOK fires the cover-closed callback.
func (d *MemDevice) CoverOK() {
	d.mu.Lock()
	fn := d.events.OnCoverOK
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// PaperEnd fires the paper-out callback.
func (d *MemDevice) PaperEnd() {
	d.mu.Lock()
	fn := d.events.OnPaperEnd
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// PaperOK fires the paper-restored callback.
func (d *MemDevice) PaperOK() {
	d.mu.Lock()
	fn := d.events.OnPaperOK
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Jobs returns a copy of every job sent so far.
func (d *MemDevice) Jobs() []*Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Job, len(d.jobs))
	copy(out, d.jobs)
	return out
}

// Opened reports whether Open has been called.
func (d *MemDevice) Opened() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Closed reports whether Close has been called.
func (d *MemDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *MemDevice) Open(ev Events) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return d.openErr
	}
	d.events = ev
	d.opened = true
	return nil
}

func (d *MemDevice) Send(job *Job) {
	d.mu.Lock()
	d.jobs = append(d.jobs, job)
	code := d.failNext
	d.failNext = ""
	silent := d.silent
	onReceive := d.events.OnReceive
	d.mu.Unlock()

	if silent || onReceive == nil {
		return
	}

	go func() {
		if code != "" {
			onReceive(JobResult{JobID: job.ID, Success: false, Code: code})
			return
		}
		onReceive(JobResult{JobID: job.ID, Success: true, Code: CodeOK})
	}()
}

func (d *MemDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

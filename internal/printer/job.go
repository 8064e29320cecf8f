// Package printer owns the receipt printer session: transport connection,
// logical device lifecycle, job delivery and asynchronous outcome reporting.
package printer

import "time"

// Op is one kind of formatting or content instruction in a print job.
type Op string

const (
	OpText  Op = "text"  // one line of text, terminated by a line feed
	OpAlign Op = "align" // left, center, right
	OpSize  Op = "size"  // character scale, 1..8 each axis
	OpStyle Op = "style" // bold on/off
	OpFeed  Op = "feed"  // n blank lines
	OpCut   Op = "cut"   // feed and cut
)

// Alignment values for OpAlign.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// Instruction is a single directive within a job. Only the fields relevant
// to its Op are set.
type Instruction struct {
	Op     Op     `json:"op"`
	Text   string `json:"text,omitempty"`
	Align  string `json:"align,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Bold   bool   `json:"bold,omitempty"`
	Lines  int    `json:"lines,omitempty"`
}

// Job is one discrete unit of printer work: an ordered instruction sequence
// ending in a cut. Jobs are derived, write-only data; they exist only for
// the duration of one send.
type Job struct {
	ID           string        `json:"id"`
	OrderID      string        `json:"order_id"`
	TicketNo     int           `json:"ticket_no"`
	Instructions []Instruction `json:"instructions"`
	SubmittedAt  time.Time     `json:"submitted_at,omitempty"`
}

// Convenience constructors keep formatter code readable.

func Text(s string) Instruction   { return Instruction{Op: OpText, Text: s} }
func Align(a string) Instruction  { return Instruction{Op: OpAlign, Align: a} }
func Size(w, h int) Instruction   { return Instruction{Op: OpSize, Width: w, Height: h} }
func Style(bold bool) Instruction { return Instruction{Op: OpStyle, Bold: bold} }
func Feed(lines int) Instruction  { return Instruction{Op: OpFeed, Lines: lines} }
func Cut() Instruction            { return Instruction{Op: OpCut} }

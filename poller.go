package img2ascii

import (
	"context"
	"errors"
	"fmt"

	"github.com/rekav/img2ascii/channel"
	"github.com/rekav/img2ascii/codec"
	"github.com/rekav/img2ascii/log"
)

// DefaultMaxPayload bounds the decoded image bytes of one request.
const DefaultMaxPayload = 15 * 1024 * 1024

// State is the poller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAwaitingTransport
	StateDecoding
	StateReportedError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingTransport:
		return "AwaitingTransport"
	case StateDecoding:
		return "Decoding"
	case StateReportedError:
		return "ReportedError"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ConversionRequest is one to_ascii invocation. Options are captured by
// value when the request starts.
type ConversionRequest struct {
	ID        uint64
	SourceURL string
	Options   ExportOptions
	Cancelled bool
}

// Poller drives a conversion from request to finished output. It writes
// the source URL to the transport channel and then, once per Tick,
// checks the result slot; the host never calls back.
//
// A Poller is not safe for concurrent use: Submit, Cancel and Tick must
// all be called from the same goroutine.
type Poller struct {
	store channel.Store
	conv  *Converter
	sink  LineSink

	maxResultText int
	maxPayload    int

	state     State
	gen       uint64
	current   *ConversionRequest
	cancelled *ConversionRequest
}

// PollerOption is a functional option for configuring a Poller.
type PollerOption func(*Poller)

// WithMaxResultText bounds the result text read from the channel.
func WithMaxResultText(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxResultText = n
		}
	}
}

// WithMaxPayload bounds the decoded payload of one request.
func WithMaxPayload(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxPayload = n
		}
	}
}

// NewPoller creates an idle Poller. Errors and progress are written to
// sink; a nil sink discards them.
func NewPoller(store channel.Store, conv *Converter, sink LineSink, opts ...PollerOption) *Poller {
	if sink == nil {
		sink = discardSink{}
	}
	p := &Poller{
		store:         store,
		conv:          conv,
		sink:          sink,
		maxResultText: channel.DefaultMaxResultText,
		maxPayload:    DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current lifecycle state.
func (p *Poller) State() State { return p.state }

// Pending reports whether a request is waiting for its transport result.
func (p *Poller) Pending() bool {
	return p.current != nil && p.state == StateAwaitingTransport
}

// Current returns the in-flight request, if any.
func (p *Poller) Current() (ConversionRequest, bool) {
	if !p.Pending() {
		return ConversionRequest{}, false
	}
	return *p.current, true
}

// Submit parses "<url> [key=value ...]" and starts the request.
func (p *Poller) Submit(args string) error {
	req, err := ParseRequest(args)
	if err != nil {
		p.report(err)
		return err
	}
	return p.Start(req.SourceURL, req.Options)
}

// Start validates url and writes it to the transport channel. A request
// already in flight is superseded; its late result will be discarded.
func (p *Poller) Start(url string, opts ExportOptions) error {
	if err := ValidateURL(url); err != nil {
		p.report(err)
		return err
	}
	if p.Pending() {
		log.Warn("request #%d superseded before its result arrived", p.current.ID)
		p.sink.WriteLine(fmt.Sprintf("Request #%d superseded", p.current.ID), LineSystem)
	}

	p.gen++
	p.current = &ConversionRequest{ID: p.gen, SourceURL: url, Options: opts}
	p.cancelled = nil

	// Anything still in the result slot predates this request.
	p.store.Delete(channel.ResultKey)
	p.store.Delete(channel.ResultSourceKey)
	p.store.Set(channel.RequestKey, url)
	p.state = StateAwaitingTransport

	log.Info("request #%d: fetching %s", p.gen, url)
	p.sink.WriteLine("Fetching image from "+url+" ...", LineSystem)
	return nil
}

// Cancel abandons the in-flight request. An unfetched request is
// withdrawn from the channel; a result that arrives later is discarded
// without being decoded. Cancel reports whether there was anything to
// cancel.
func (p *Poller) Cancel() bool {
	if !p.Pending() {
		return false
	}
	p.current.Cancelled = true
	p.cancelled = p.current
	p.current = nil
	p.state = StateIdle

	p.store.Delete(channel.RequestKey)
	log.Info("request #%d cancelled", p.cancelled.ID)
	p.sink.WriteLine(fmt.Sprintf("Request #%d cancelled", p.cancelled.ID), LineSystem)
	return true
}

// Tick checks the result slot once. It is a no-op unless a request is
// pending. A reported failure is settled back to Idle on the next Tick. It returns the conversion result when one completed during
// this tick, and the error when the request failed; a failed request is
// also reported to the line sink exactly once.
func (p *Poller) Tick(ctx context.Context) (*Result, error) {
	if p.state == StateReportedError {
		p.state = StateIdle
	}
	if !p.Pending() {
		p.drainCancelled()
		return nil, nil
	}

	text, ok := p.store.Get(channel.ResultKey)
	if !ok || text == "" {
		return nil, nil
	}
	if src, ok := p.store.Get(channel.ResultSourceKey); ok && src != p.current.SourceURL {
		p.clearResult()
		log.Debug("discarded stale result for %s while waiting for %s", src, p.current.SourceURL)
		return nil, nil
	}
	p.clearResult()

	req := p.current
	raw, err := p.payload(text)
	if err != nil {
		return nil, p.fail(err)
	}

	p.state = StateDecoding
	p.sink.WriteLine(fmt.Sprintf("Image received and decoded (%d bytes)", len(raw)), LineSystem)
	res, err := p.conv.Convert(ctx, raw, req.Options)
	if err != nil {
		return nil, p.fail(err)
	}
	p.current = nil
	p.state = StateIdle
	return res, nil
}

// payload interprets the result text: an error marker, the too-large
// sentinel, or base64 of the image bytes.
func (p *Poller) payload(text string) ([]byte, error) {
	if msg, ok := channel.ParseError(text); ok {
		return nil, newError(ErrTransport, nil, "%s", msg)
	}
	if text == channel.TooLarge {
		return nil, newError(ErrPayloadTooLarge, nil, "image too large for transport")
	}
	if len(text) > p.maxResultText {
		return nil, newError(ErrPayloadTooLarge, nil, "result of %d bytes exceeds %d", len(text), p.maxResultText)
	}

	size := codec.DecodedLen(len(text))
	if size > p.maxPayload {
		size = p.maxPayload
	}
	buf := make([]byte, size)
	n, err := codec.Decode(buf, text)
	switch {
	case errors.Is(err, codec.ErrShortBuffer):
		return nil, newError(ErrPayloadTooLarge, err, "decoded image exceeds %d bytes", p.maxPayload)
	case err != nil:
		return nil, newError(ErrDecode, err, "")
	}
	return buf[:n], nil
}

// fail ends the current request with err and reports it. The state
// reads ReportedError until the next Tick.
func (p *Poller) fail(err error) error {
	p.current = nil
	p.state = StateReportedError
	p.report(err)
	return err
}

func (p *Poller) report(err error) {
	log.Warn("%v", err)
	p.sink.WriteLine("Error: "+err.Error(), LineError)
}

// drainCancelled discards a result that arrives for a cancelled request.
func (p *Poller) drainCancelled() {
	if p.cancelled == nil {
		return
	}
	if text, ok := p.store.Get(channel.ResultKey); ok && text != "" {
		p.clearResult()
		log.Debug("discarded late result for cancelled request #%d", p.cancelled.ID)
		p.cancelled = nil
	}
}

func (p *Poller) clearResult() {
	p.store.Delete(channel.ResultKey)
	p.store.Delete(channel.ResultSourceKey)
}

package img2ascii

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rekav/img2ascii/channel"
	"github.com/rekav/img2ascii/codec"
	"github.com/rekav/img2ascii/imageutil"
)

type pollerFixture struct {
	p     *Poller
	store *channel.MemoryStore
	sink  *recordSink
	trig  *memTrigger
}

func newPollerFixture(t *testing.T, opts ...PollerOption) *pollerFixture {
	t.Helper()
	f := &pollerFixture{
		store: channel.NewMemoryStore(),
		sink:  &recordSink{},
		trig:  &memTrigger{},
	}
	conv := newTestConverter(t, f.sink, f.trig)
	f.p = NewPoller(f.store, conv, f.sink, opts...)
	return f
}

// tick runs one Tick with a background context.
func (f *pollerFixture) tick() (*Result, error) {
	return f.p.Tick(context.Background())
}

func TestPollerSubmitWritesRequest(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t)
	if f.p.State() != StateIdle || f.p.Pending() {
		t.Fatalf("new poller state = %v", f.p.State())
	}
	if err := f.p.Submit("https://example.com/cat.png wide=40"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got, _ := f.store.Get(channel.RequestKey); got != "https://example.com/cat.png" {
		t.Errorf("request key = %q", got)
	}
	if !f.p.Pending() || f.p.State() != StateAwaitingTransport {
		t.Errorf("state = %v, pending = %v", f.p.State(), f.p.Pending())
	}
	req, ok := f.p.Current()
	if !ok || req.ID != 1 || req.Options.TargetWidth != 40 {
		t.Errorf("Current() = %+v, %v", req, ok)
	}
}

func TestPollerSubmitInvalidURL(t *testing.T) {
	t.Parallel()

	for _, args := range []string{"ftp://x/y.png", "", "not-a-url wide=3"} {
		f := newPollerFixture(t)
		err := f.p.Submit(args)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Submit(%q) err = %v, want ErrInvalidRequest", args, err)
		}
		if f.p.Pending() || f.store.Len() != 0 {
			t.Errorf("Submit(%q) left pending=%v, %d keys", args, f.p.Pending(), f.store.Len())
		}
		if n := len(f.sink.ofKind(LineError)); n != 1 {
			t.Errorf("Submit(%q) reported %d error lines, want 1", args, n)
		}
	}
}

func TestPollerTickWithoutResult(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t)
	if res, err := f.tick(); res != nil || err != nil {
		t.Errorf("idle Tick = %v, %v", res, err)
	}

	if err := f.p.Submit("http://x/y.png"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if res, err := f.tick(); res != nil || err != nil {
			t.Fatalf("Tick %d = %v, %v", i, res, err)
		}
	}
	f.store.Set(channel.ResultKey, "")
	if res, err := f.tick(); res != nil || err != nil {
		t.Errorf("empty result Tick = %v, %v", res, err)
	}
	if !f.p.Pending() {
		t.Error("request should still be pending")
	}
}

func TestPollerTransportError(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t)
	if err := f.p.Submit("http://x/y.png"); err != nil {
		t.Fatal(err)
	}
	f.store.Set(channel.ResultKey, "__ERROR__:timeout")

	_, err := f.tick()
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	var perr *Error
	if !errors.As(err, &perr) || perr.Msg != "timeout" {
		t.Errorf("error = %#v, want Msg \"timeout\"", err)
	}
	if f.p.Pending() || f.p.State() != StateReportedError {
		t.Errorf("state = %v, pending = %v", f.p.State(), f.p.Pending())
	}
	if _, ok := f.store.Get(channel.ResultKey); ok {
		t.Error("result key should be deleted")
	}
	want := []string{"Error: transport error: timeout"}
	if got := f.sink.ofKind(LineError); !reflect.DeepEqual(got, want) {
		t.Errorf("error lines = %q, want %q", got, want)
	}

	// Reported once; the next tick settles back to Idle.
	for i := 0; i < 2; i++ {
		if _, err := f.tick(); err != nil {
			t.Errorf("Tick %d after failure: err = %v", i, err)
		}
		if f.p.State() != StateIdle {
			t.Errorf("Tick %d after failure: state = %v, want Idle", i, f.p.State())
		}
	}
	if n := len(f.sink.ofKind(LineError)); n != 1 {
		t.Errorf("%d error lines after further ticks", n)
	}
}

func TestPollerPayloadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result string
		opts   []PollerOption
		want   Kind
	}{
		{"too large sentinel", channel.TooLarge, nil, ErrPayloadTooLarge},
		{"text over bound", "Zm9vYmFy", []PollerOption{WithMaxResultText(4)}, ErrPayloadTooLarge},
		{"payload over bound", "Zm9vYmFy", []PollerOption{WithMaxPayload(5)}, ErrPayloadTooLarge},
		{"malformed base64", "Zm9*", nil, ErrDecode},
		{"not an image", codec.EncodeToString([]byte("hello, world")), nil, ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPollerFixture(t, tt.opts...)
			if err := f.p.Submit("http://x/y.png"); err != nil {
				t.Fatal(err)
			}
			f.store.Set(channel.ResultKey, tt.result)
			_, err := f.tick()
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if f.p.Pending() {
				t.Error("request still pending after failure")
			}
			if len(f.sink.ofKind(LineNormal)) != 0 {
				t.Error("preview lines written for a failed request")
			}
		})
	}
}

func TestPollerEndToEnd(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t)
	if err := f.p.Submit("https://img.example/gray.png wide=10 ramp=1"); err != nil {
		t.Fatal(err)
	}
	f.store.Set(channel.ResultKey, codec.EncodeToString(imageutil.CreateSolidPNG(100, 50, gray(128))))

	res, err := f.tick()
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	want := []string{"+=+=+=+=+=", "=+=+=+=+=+"}
	if got := res.Preview.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("preview = %q, want %q", got, want)
	}
	if got := f.sink.ofKind(LineNormal); !reflect.DeepEqual(got, want) {
		t.Errorf("printed = %q, want %q", got, want)
	}
	if f.p.Pending() || f.p.State() != StateIdle {
		t.Errorf("state = %v after success", f.p.State())
	}
	if _, ok := f.store.Get(channel.ResultKey); ok {
		t.Error("result key should be consumed")
	}
}

func TestPollerDeterministic(t *testing.T) {
	t.Parallel()

	payload := codec.EncodeToString(imageutil.CreateSolidPNG(64, 64, gray(77)))
	var first []string
	for i := 0; i < 2; i++ {
		f := newPollerFixture(t)
		if err := f.p.Submit("http://x/a.png wide=33"); err != nil {
			t.Fatal(err)
		}
		f.store.Set(channel.ResultKey, payload)
		res, err := f.tick()
		if err != nil {
			t.Fatalf("Tick failed: %v", err)
		}
		if i == 0 {
			first = res.Preview.Lines()
		} else if !reflect.DeepEqual(first, res.Preview.Lines()) {
			t.Error("identical inputs produced different grids")
		}
	}
}

func TestPollerExport(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t)
	if err := f.p.Submit("http://x/a.png download=1 wide=12 name=art.png"); err != nil {
		t.Fatal(err)
	}
	raw, err := imageutil.EncodePNG(imageutil.CreateGradientImage(120, 60))
	if err != nil {
		t.Fatal(err)
	}
	f.store.Set(channel.ResultKey, codec.EncodeToString(raw))
	res, err := f.tick()
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if f.trig.count() != 1 || f.trig.names[0] != "art.png" {
		t.Errorf("deliveries = %v", f.trig.names)
	}
	if len(res.PNG) == 0 {
		t.Error("no PNG in result")
	}
}

func TestPollerDiscardsStaleResult(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t)
	f.store.Set(channel.ResultKey, "__ERROR__:left over")
	if err := f.p.Submit("http://x/new.png"); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.store.Get(channel.ResultKey); ok {
		t.Fatal("Start should clear a leftover result")
	}

	// A result tagged with another URL belongs to an earlier request.
	f.store.Set(channel.ResultSourceKey, "http://x/old.png")
	f.store.Set(channel.ResultKey, "__ERROR__:old failure")
	if res, err := f.tick(); res != nil || err != nil {
		t.Errorf("stale Tick = %v, %v", res, err)
	}
	if !f.p.Pending() {
		t.Error("stale result ended the current request")
	}
	if _, ok := f.store.Get(channel.ResultKey); ok {
		t.Error("stale result not deleted")
	}

	f.store.Set(channel.ResultSourceKey, "http://x/new.png")
	f.store.Set(channel.ResultKey, "__ERROR__:404")
	if _, err := f.tick(); !errors.Is(err, ErrTransport) {
		t.Errorf("matching result: err = %v", err)
	}
}

func TestPollerSupersede(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t)
	if err := f.p.Submit("http://x/a.png"); err != nil {
		t.Fatal(err)
	}
	if err := f.p.Submit("http://x/b.png wide=20"); err != nil {
		t.Fatal(err)
	}
	req, ok := f.p.Current()
	if !ok || req.ID != 2 || req.SourceURL != "http://x/b.png" || req.Options.TargetWidth != 20 {
		t.Errorf("Current() = %+v", req)
	}
	if got, _ := f.store.Get(channel.RequestKey); got != "http://x/b.png" {
		t.Errorf("request key = %q", got)
	}
}

func TestPollerCancel(t *testing.T) {
	t.Parallel()

	f := newPollerFixture(t)
	if f.p.Cancel() {
		t.Error("Cancel with nothing pending returned true")
	}
	if err := f.p.Submit("http://x/a.png"); err != nil {
		t.Fatal(err)
	}
	if !f.p.Cancel() {
		t.Fatal("Cancel returned false")
	}
	if f.p.Pending() || f.p.State() != StateIdle {
		t.Errorf("state = %v after Cancel", f.p.State())
	}
	if _, ok := f.store.Get(channel.RequestKey); ok {
		t.Error("unfetched request should be withdrawn")
	}

	// The host answers late; the result is dropped without converting.
	f.store.Set(channel.ResultKey, codec.EncodeToString(imageutil.CreateSolidPNG(10, 10, gray(50))))
	if res, err := f.tick(); res != nil || err != nil {
		t.Errorf("Tick after Cancel = %v, %v", res, err)
	}
	if _, ok := f.store.Get(channel.ResultKey); ok {
		t.Error("late result should be discarded")
	}
	if n := len(f.sink.ofKind(LineNormal)); n != 0 {
		t.Errorf("%d preview lines printed for a cancelled request", n)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	for s, want := range map[State]string{
		StateIdle:              "Idle",
		StateAwaitingTransport: "AwaitingTransport",
		StateDecoding:          "Decoding",
		StateReportedError:     "ReportedError",
		State(9):               "State(9)",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
}

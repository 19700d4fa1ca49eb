package host_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/rekav/img2ascii"
	"github.com/rekav/img2ascii/channel"
	"github.com/rekav/img2ascii/host"
	"github.com/rekav/img2ascii/imageutil"
)

type lines struct{ normal, errs []string }

func (l *lines) WriteLine(line string, kind img2ascii.LineKind) {
	switch kind {
	case img2ascii.LineNormal:
		l.normal = append(l.normal, line)
	case img2ascii.LineError:
		l.errs = append(l.errs, line)
	}
}

func newPipeline(t *testing.T, out *lines) (*img2ascii.Poller, *host.Fetcher) {
	t.Helper()
	store := channel.NewMemoryStore()
	conv, err := img2ascii.NewConverter(img2ascii.WithLineSink(out))
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}
	return img2ascii.NewPoller(store, conv, out), host.NewFetcher(store)
}

func TestPollerWithFetcher(t *testing.T) {
	t.Parallel()

	png := imageutil.CreateSolidPNG(100, 50, imageutil.RGB{R: 128, G: 128, B: 128})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
	defer srv.Close()

	out := &lines{}
	p, f := newPipeline(t, out)
	ctx := context.Background()

	if err := p.Submit(srv.URL + "/gray.png wide=10 ramp=1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res, err := p.Tick(ctx); res != nil || err != nil {
		t.Fatalf("Tick before fetch = %v, %v", res, err)
	}
	if !f.Step(ctx) {
		t.Fatal("fetcher found no request")
	}
	res, err := p.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	want := []string{"+=+=+=+=+=", "=+=+=+=+=+"}
	if !reflect.DeepEqual(res.Preview.Lines(), want) || !reflect.DeepEqual(out.normal, want) {
		t.Errorf("preview = %q, printed = %q, want %q", res.Preview.Lines(), out.normal, want)
	}
}

func TestPollerWithFetcherHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	out := &lines{}
	p, f := newPipeline(t, out)
	ctx := context.Background()

	if err := p.Submit(srv.URL + "/nope.png"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	f.Step(ctx)
	_, err := p.Tick(ctx)
	if !errors.Is(err, img2ascii.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if len(out.errs) != 1 || p.Pending() {
		t.Errorf("errors = %q, pending = %v", out.errs, p.Pending())
	}
}

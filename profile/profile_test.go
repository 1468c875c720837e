package profile

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"decadecity/cookies"
	"decadecity/dom"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestDetectTransformPrefix(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		props  []string
		want   bool
		prefix string
	}{
		{"webkit wins", []string{"transform", "webkitTransform"}, true, "-webkit-"},
		{"moz", []string{"MozTransform"}, true, "-moz-"},
		{"opera", []string{"OTransform", "transform"}, true, "-o-"},
		{"unprefixed", []string{"transform"}, true, ""},
		{"none", []string{"color"}, false, ""},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := Detect(Features{StyleProperties: tc.props})
			if p.Transform != tc.want || p.TransformPrefix != tc.prefix {
				t.Fatalf("Detect(%v) = transform %v prefix %q, want %v %q", tc.props, p.Transform, p.TransformPrefix, tc.want, tc.prefix)
			}
		})
	}
}

func TestDetectTouch(t *testing.T) {
	t.Parallel()
	if !Detect(Features{MaxTouchPoints: 2}).Touch {
		t.Fatal("touch points should imply touch")
	}
	if !Detect(Features{OnTouchStart: true}).Touch {
		t.Fatal("ontouchstart should imply touch")
	}
	if Detect(Features{}).Touch {
		t.Fatal("no touch facts should not imply touch")
	}
}

func TestApplyClasses(t *testing.T) {
	t.Parallel()
	doc, err := dom.ParseString(`<html class="pointer js"><body></body></html>`, "https://www.example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := Detect(Features{StyleProperties: []string{"transform"}, OnTouchStart: true})
	p.ApplyClasses(doc)
	root := doc.HTML()
	if !dom.HasClass(root, "transform") {
		t.Fatal("transform class missing")
	}
	if dom.HasClass(root, "pointer") {
		t.Fatal("pointer class should be removed on touch devices")
	}
	if !dom.HasClass(root, "js") {
		t.Fatal("unrelated class removed")
	}
}

func TestCapabilities(t *testing.T) {
	t.Parallel()
	var p *Profile
	if p.SupportsSVG() || p.LoadSpeed() != "" {
		t.Fatal("nil profile should report nothing")
	}
	p = &Profile{SVG: true, Speed: "fast"}
	p.RecordImageSuffix("")
	if !p.SupportsSVG() || p.LoadSpeed() != "fast" {
		t.Fatalf("unexpected capabilities: %+v", p)
	}
	if p.ImageSuffix == nil || *p.ImageSuffix != "" {
		t.Fatal("empty suffix should still be recorded")
	}
	if got := p.Query().Get("image_suffix"); got != "" || !p.Query().Has("image_suffix") {
		t.Fatalf("image_suffix query = %q", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()
	jar, err := cookies.NewJar("https://www.example.com/blog/post")
	if err != nil {
		t.Fatalf("NewJar: %v", err)
	}
	p := Detect(Features{SVGBasicStructure: true, JSON: true, PerformanceTiming: true})
	p.Speed = "slow"
	if err := p.Save(jar); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok := Load(jar)
	if !ok {
		t.Fatal("profile cookie missing")
	}
	if !got.SVG || !got.Timing || got.Speed != "slow" || !got.Profile {
		t.Fatalf("loaded %+v", got)
	}
}

func TestSaveWithoutJSON(t *testing.T) {
	t.Parallel()
	store := cookies.NewSessionStorage()
	if err := Detect(Features{}).Save(store); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if store.HasItem(CookieName) {
		t.Fatal("profile should not be saved without JSON support")
	}
}

func newReporter(t *testing.T, srv *httptest.Server, session *cookies.SessionStorage) (*Reporter, *cookies.Jar) {
	t.Helper()
	jar, err := cookies.NewJar(srv.URL + "/page")
	if err != nil {
		t.Fatalf("NewJar: %v", err)
	}
	return &Reporter{
		PageURL: srv.URL + "/page",
		Client:  srv.Client(),
		Cookies: jar,
		Session: session,
		Logger:  quietLogger(),
	}, jar
}

func TestReporterSendsOncePerSession(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	var lastQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		lastQuery.Store(r.URL.RawQuery)
	}))
	defer srv.Close()

	session := cookies.NewSessionStorage()
	rep, _ := newReporter(t, srv, session)
	p := Detect(Features{SVGBasicStructure: true, JSON: true})
	ctx := context.Background()

	sent, err := rep.Send(ctx, p, false)
	if err != nil || !sent {
		t.Fatalf("first send = %v, %v", sent, err)
	}
	if sent, _ := rep.Send(ctx, p, false); sent {
		t.Fatal("second send should be suppressed")
	}
	if sent, _ := rep.Send(ctx, p, true); !sent {
		t.Fatal("forced send should go out")
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("hits = %d, want 2", got)
	}
	q, _ := lastQuery.Load().(string)
	if !strings.Contains(q, "session_storage=true") || !strings.Contains(q, "svg=true") {
		t.Fatalf("query = %q", q)
	}
	if !session.HasItem(SentKey) {
		t.Fatal("sent mark should live in session storage")
	}
}

func TestReporterFallsBackToCookies(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	rep, jar := newReporter(t, srv, cookies.UnsupportedSessionStorage())
	if _, err := rep.Send(context.Background(), Detect(Features{JSON: true}), false); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !jar.HasItem(SentKey) {
		t.Fatal("sent mark should fall back to cookies")
	}
	if !jar.HasItem(CookieName) {
		t.Fatal("profile cookie should be saved before sending")
	}
}

func TestReporterDebug(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("debug mode should not send")
	}))
	defer srv.Close()

	rep, _ := newReporter(t, srv, cookies.NewSessionStorage())
	rep.Debug = true
	if sent, err := rep.Send(context.Background(), Detect(Features{}), true); sent || err != nil {
		t.Fatalf("Send = %v, %v", sent, err)
	}
}

func TestReporterDelayHonoursContext(t *testing.T) {
	t.Parallel()
	rep := &Reporter{PageURL: "https://www.example.com/", Delay: time.Hour, Logger: quietLogger()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rep.Send(ctx, Detect(Features{}), false); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestReporterTarget(t *testing.T) {
	t.Parallel()
	p := &Profile{Profile: true}
	tests := []struct {
		endpoint, page, want string
	}{
		{"", "https://www.example.com/a/b", "https://www.example.com/profile?"},
		{"/stats", "https://www.example.com/a/b", "https://www.example.com/stats?"},
		{"https://stats.example.net/p", "", "https://stats.example.net/p?"},
	}
	for _, tc := range tests {
		r := &Reporter{Endpoint: tc.endpoint, PageURL: tc.page}
		got, err := r.target(p)
		if err != nil {
			t.Fatalf("target(%q): %v", tc.endpoint, err)
		}
		if !strings.HasPrefix(got, tc.want) {
			t.Fatalf("target(%q) = %q, want prefix %q", tc.endpoint, got, tc.want)
		}
	}
	if _, err := (&Reporter{Endpoint: "/p"}).target(p); err == nil {
		t.Fatal("relative endpoint without page url should fail")
	}
}

func TestMeasureSpeed(t *testing.T) {
	t.Parallel()
	body := strings.Repeat("x", 32*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()
	ctx := context.Background()

	res, err := MeasureSpeed(ctx, srv.Client(), srv.URL+"/probe", 1)
	if err != nil {
		t.Fatalf("MeasureSpeed: %v", err)
	}
	if res.Speed != "fast" || res.Bytes != int64(len(body)) || !res.Complete {
		t.Fatalf("result = %+v", res)
	}

	res, err = MeasureSpeed(ctx, srv.Client(), srv.URL+"/probe", 1e15)
	if err != nil || res.Speed != "slow" {
		t.Fatalf("high threshold = %+v, %v", res, err)
	}

	res, err = MeasureSpeed(ctx, srv.Client(), srv.URL+"/missing", 1)
	if err == nil || res.Speed != "slow" {
		t.Fatalf("missing asset = %+v, %v", res, err)
	}
}

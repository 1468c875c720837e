package beacon

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"decadecity/cookies"
	"decadecity/dom"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestComputeWithNavigationTiming(t *testing.T) {
	t.Parallel()
	tm := Timing{
		Navigation: &Navigation{
			NavigationStart: 1000,
			ResponseEnd:     1200,
			DOMInteractive:  1500,
			LoadEventStart:  1900,
		},
		Marks: Marks{PageStart: 1, HeadEnd: 1300, BodyEnd: 1450, JSStart: 1310, JSEnd: 1340},
	}
	tm.Prepare()
	got := Compute(tm)
	want := map[string]int64{
		"t_domready": 300,
		"t_head":     100,
		"t_body":     150,
		"t_done":     200,
		"t_onload":   700,
		"t_js":       30,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Compute = %v, want %v", got, want)
	}
}

func TestComputeWithStoredNavigationStart(t *testing.T) {
	t.Parallel()
	tm := Timing{
		Marks:           Marks{PageStart: 5000, DOMReady: 5400, OnLoad: 6000, CSSStart: 5010, CSSEnd: 5050},
		NavigationStart: 4200,
		Now:             7000,
	}
	tm.Prepare()
	got := Compute(tm)
	want := map[string]int64{
		"t_domready": 400,
		"t_done":     800,
		"t_onload":   1000,
		"t_css":      40,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Compute = %v, want %v", got, want)
	}
}

func TestComputeMissingInputs(t *testing.T) {
	t.Parallel()
	tm := Timing{Marks: Marks{JSStart: 10}, Now: 99}
	tm.Prepare()
	if got := Compute(tm); len(got) != 0 {
		t.Fatalf("Compute = %v, want nothing", got)
	}
	if tm.Marks.DOMReady != 99 {
		t.Fatalf("DOMReady = %d, want fallback to now", tm.Marks.DOMReady)
	}
}

func TestInitVars(t *testing.T) {
	t.Parallel()
	doc, err := dom.ParseString("<p>hi</p>", "https://www.example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc.Window = dom.Window{ClientWidth: 1024, ClientHeight: 768, Href: "https://www.example.com/a", Referrer: "https://search.example/"}
	b := New(Config{Logger: quietLogger()})
	b.Init(doc)
	want := map[string]string{
		"noscript": "0",
		"r":        "https://search.example/",
		"u":        "https://www.example.com/a",
		"b_height": "768",
		"b_width":  "1024",
	}
	if got := b.Vars(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Vars = %v, want %v", got, want)
	}
}

func TestDOMReadyMarkedAtInit(t *testing.T) {
	t.Parallel()
	doc, err := dom.ParseString("<p>hi</p>", "https://www.example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	now := int64(1200)
	b := New(Config{Logger: quietLogger(), Clock: func() time.Time { return time.UnixMilli(now) }})
	b.Init(doc)
	now = 3000
	b.Finish(Timing{Marks: Marks{PageStart: 1000}})
	if got := b.Vars()["t_domready"]; got != "200" {
		t.Fatalf("t_domready = %q, want 200", got)
	}

	// Navigation timing takes precedence over the Init mark.
	b.Finish(Timing{Navigation: &Navigation{NavigationStart: 900, ResponseEnd: 1000, DOMInteractive: 1600, LoadEventStart: 2000}})
	if got := b.Vars()["t_domready"]; got != "600" {
		t.Fatalf("t_domready with navigation timing = %q, want 600", got)
	}
}

func TestURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		base string
		vars map[string]any
		want string
	}{
		{"no endpoint", "", map[string]any{"a": 1}, ""},
		{"question mark", "https://t.example/b", map[string]any{"b": "x y", "a": 1}, "https://t.example/b?a=1&b=x%20y"},
		{"existing query", "https://t.example/b?site=1", map[string]any{"u": "https://www.example.com/?q=1&r=(2)"}, "https://t.example/b?site=1&u=https%3A%2F%2Fwww.example.com%2F%3Fq%3D1%26r%3D(2)"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := New(Config{URL: tc.base, Logger: quietLogger()})
			b.AddVars(tc.vars)
			if got := b.URL(); got != tc.want {
				t.Fatalf("URL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAddVarReplaces(t *testing.T) {
	t.Parallel()
	b := New(Config{})
	b.AddVar("k", "one")
	b.AddVar("k", 2.5)
	if got := b.Vars()["k"]; got != "2.5" {
		t.Fatalf("k = %q", got)
	}
}

func TestNavigationStartRoundTrip(t *testing.T) {
	t.Parallel()
	jar, err := cookies.NewJar("https://www.example.com/")
	if err != nil {
		t.Fatalf("NewJar: %v", err)
	}
	clock := func() time.Time { return time.UnixMilli(4000) }
	prev := New(Config{Cookies: jar, Session: cookies.UnsupportedSessionStorage(), Clock: clock})
	if err := prev.RecordNavigationStart(); err != nil {
		t.Fatalf("RecordNavigationStart: %v", err)
	}
	if v, _ := jar.GetItem(NavigationStartKey); v != "4000" {
		t.Fatalf("stored %q", v)
	}

	next := New(Config{Cookies: jar, Session: cookies.UnsupportedSessionStorage(), Clock: func() time.Time { return time.UnixMilli(6500) }})
	next.Finish(Timing{Marks: Marks{PageStart: 5000, DOMReady: 5100}})
	vars := next.Vars()
	if vars["t_done"] != "1000" || vars["t_onload"] != "1500" || vars["t_domready"] != "100" {
		t.Fatalf("vars = %v", vars)
	}
}

func TestNavigationStartPrefersSession(t *testing.T) {
	t.Parallel()
	session := cookies.NewSessionStorage()
	b := New(Config{Session: session, Clock: func() time.Time { return time.UnixMilli(42) }})
	if err := b.RecordNavigationStart(); err != nil {
		t.Fatalf("RecordNavigationStart: %v", err)
	}
	if v, _ := session.GetItem(NavigationStartKey); v != "42" {
		t.Fatalf("session value %q", v)
	}
	if err := New(Config{}).RecordNavigationStart(); err != nil {
		t.Fatalf("no storage should be a no-op: %v", err)
	}
}

func TestSend(t *testing.T) {
	t.Parallel()
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	b := New(Config{URL: srv.URL + "/beacon", Delay: time.Millisecond, Client: srv.Client(), Logger: quietLogger()})
	b.AddVar("t_done", int64(250))
	sent, err := b.Send(context.Background())
	if err != nil || !sent {
		t.Fatalf("Send = %v, %v", sent, err)
	}
	if q := <-got; q != "t_done=250" {
		t.Fatalf("query = %q", q)
	}
}

func TestSendWithoutEndpoint(t *testing.T) {
	t.Parallel()
	if sent, err := New(Config{}).Send(context.Background()); sent || err != nil {
		t.Fatalf("Send = %v, %v", sent, err)
	}
}

func TestSendCancelled(t *testing.T) {
	t.Parallel()
	b := New(Config{URL: "https://t.example/b", Delay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Send(ctx); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

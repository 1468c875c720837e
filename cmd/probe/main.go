package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"decadecity/beacon"
	"decadecity/cookies"
	"decadecity/core"
	"decadecity/images"
	"decadecity/internal/probe"
	"decadecity/profile"
)

type report struct {
	URL         string            `json:"url"`
	Status      int               `json:"status"`
	Profile     *profile.Profile  `json:"profile"`
	ImageSuffix images.Suffix     `json:"image_suffix"`
	Beacon      map[string]string `json:"beacon"`
	BeaconURL   string            `json:"beacon_url,omitempty"`
	Cookies     string            `json:"cookies,omitempty"`
}

func main() {
	target := "https://decadecity.net/"
	width := flag.Int("width", 1024, "viewport width")
	height := flag.Int("height", 768, "viewport height")
	dpr := flag.Float64("dpr", 1, "device pixel ratio")
	mobile := flag.Bool("mobile", false, "emulate a mobile device")
	touch := flag.Bool("touch", false, "emulate touch input")
	slow := flag.Bool("slow", false, "throttle the network")
	ua := flag.String("ua", "", "user agent override")
	timeout := flag.Duration("timeout", 30*time.Second, "probe timeout")
	flag.Parse()
	if flag.NArg() > 0 {
		target = flag.Arg(0)
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stderr)

	cfg := core.DefaultConfig()
	if sc := core.NewSiteStore(cfg.SitesDir).Find(target); sc != nil {
		cfg = sc.Apply(cfg)
	}
	jar, err := cookies.NewJar(target)
	if err != nil {
		log.Fatal(err)
	}

	p := probe.New(cfg.Logger)
	defer p.Close()
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	log.Printf("probe %s", target)
	res, err := p.Probe(ctx, target, probe.Options{
		Width:     *width,
		Height:    *height,
		DPR:       *dpr,
		Mobile:    *mobile,
		Touch:     *touch,
		Slow:      *slow,
		UserAgent: *ua,
		Timeout:   *timeout,
		Jar:       jar,
	})
	if err != nil {
		log.Fatal(err)
	}

	prof := profile.Detect(res.Features)
	prof.Speed = images.SpeedFast
	if *slow {
		prof.Speed = images.SpeedSlow
	}
	doc, err := res.Document()
	if err != nil {
		log.Fatal(err)
	}
	img := images.New(images.Config{Bucket: cfg.S3Bucket, Store: jar, Profile: prof, Logger: cfg.Logger})
	suffix := img.SelectSuffix(images.Viewport{
		Width:        float64(res.Window.ClientWidth),
		Height:       float64(res.Window.ClientHeight),
		PixelDensity: float64(int(res.Window.DevicePixelRatio)),
		Speed:        prof.Speed,
	})

	b := beacon.New(beacon.Config{URL: cfg.BeaconURL, Cookies: jar, Clock: cfg.Clock, Logger: cfg.Logger})
	b.Init(doc)
	b.Finish(beacon.Timing{Navigation: res.Navigation, Marks: res.Marks})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report{
		URL:         res.URL,
		Status:      res.Status,
		Profile:     prof,
		ImageSuffix: suffix,
		Beacon:      b.Vars(),
		BeaconURL:   b.URL(),
		Cookies:     jar.String(),
	}); err != nil {
		log.Fatal(err)
	}
}

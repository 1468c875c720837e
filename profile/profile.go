// Package profile describes what the visiting browser can do and how fast its
// connection is, and reports that description back to the site.
package profile

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"decadecity/cookies"
	"decadecity/dom"
)

// Cookie and storage keys.
const (
	CookieName  = "profile"
	SentKey     = "profile-sent"
	DefaultPath = "/profile"
)

// Profile is the capability record shared with the server. Field names match
// the keys the server side has always read.
type Profile struct {
	Profile        bool    `json:"profile"`
	SVG            bool    `json:"svg"`
	Transform      bool    `json:"transform,omitempty"`
	Touch          bool    `json:"touch,omitempty"`
	JSON           bool    `json:"json,omitempty"`
	AsyncScripts   bool    `json:"async_scripts"`
	Timing         bool    `json:"timing"`
	SessionStorage bool    `json:"session_storage"`
	Speed          string  `json:"load_speed,omitempty"`
	ConnectionType string  `json:"connection_type,omitempty"`
	ImageSuffix    *string `json:"image_suffix,omitempty"`

	// TransformPrefix is the vendor prefix for CSS transforms ("-webkit-" etc).
	TransformPrefix string `json:"-"`
}

// Features are the raw facts a browser exposes about itself.
type Features struct {
	SVGBasicStructure bool     `json:"svg"`
	StyleProperties   []string `json:"style"`
	OnTouchStart      bool     `json:"ontouchstart"`
	MaxTouchPoints    int      `json:"maxTouchPoints"`
	JSON              bool     `json:"json"`
	AsyncScripts      bool     `json:"async"`
	PerformanceTiming bool     `json:"timing"`
	SessionStorage    bool     `json:"sessionStorage"`
	ConnectionType    string   `json:"connectionType"`
}

// transformProps are checked in order; the first supported one wins.
var transformProps = []struct {
	prop   string
	prefix string
}{
	{"webkitTransform", "-webkit-"},
	{"MozTransform", "-moz-"},
	{"OTransform", "-o-"},
	{"transform", ""},
}

// Detect builds a profile from browser facts.
func Detect(f Features) *Profile {
	p := &Profile{
		Profile:        true,
		SVG:            f.SVGBasicStructure,
		Touch:          f.OnTouchStart || f.MaxTouchPoints > 0,
		JSON:           f.JSON,
		AsyncScripts:   f.AsyncScripts,
		Timing:         f.PerformanceTiming,
		SessionStorage: f.SessionStorage,
		ConnectionType: f.ConnectionType,
	}
	props := make(map[string]bool, len(f.StyleProperties))
	for _, name := range f.StyleProperties {
		props[name] = true
	}
	for _, tp := range transformProps {
		if props[tp.prop] {
			p.Transform = true
			p.TransformPrefix = tp.prefix
			break
		}
	}
	return p
}

// SupportsSVG reports inline SVG support.
func (p *Profile) SupportsSVG() bool { return p != nil && p.SVG }

// LoadSpeed returns the measured speed classification, or "".
func (p *Profile) LoadSpeed() string {
	if p == nil {
		return ""
	}
	return p.Speed
}

// RecordImageSuffix keeps the image size chosen for this environment.
func (p *Profile) RecordImageSuffix(suffix string) {
	if p == nil {
		return
	}
	s := suffix
	p.ImageSuffix = &s
}

// ApplyClasses reflects the profile onto the root element: "transform" is
// added when transforms work and "pointer" is dropped on touch devices.
func (p *Profile) ApplyClasses(doc *dom.Document) {
	root := doc.HTML()
	if root == nil || p == nil {
		return
	}
	if p.Transform {
		dom.AddClass(root, "transform")
	}
	if p.Touch {
		dom.RemoveClass(root, "pointer")
	}
}

// Query encodes the profile as request parameters, keys sorted.
func (p *Profile) Query() url.Values {
	v := url.Values{}
	setBool := func(k string, b bool) { v.Set(k, strconv.FormatBool(b)) }
	setBool("profile", p.Profile)
	setBool("svg", p.SVG)
	if p.Transform {
		setBool("transform", true)
	}
	if p.Touch {
		setBool("touch", true)
	}
	if p.JSON {
		setBool("json", true)
	}
	setBool("async_scripts", p.AsyncScripts)
	setBool("timing", p.Timing)
	setBool("session_storage", p.SessionStorage)
	if p.Speed != "" {
		v.Set("load_speed", p.Speed)
	}
	if p.ConnectionType != "" {
		v.Set("connection_type", p.ConnectionType)
	}
	if p.ImageSuffix != nil {
		v.Set("image_suffix", *p.ImageSuffix)
	}
	return v
}

// Save writes the profile as JSON into the profile cookie at the site root.
// Environments without JSON support keep no cookie.
func (p *Profile) Save(store cookies.Store) error {
	if p == nil || !p.JSON || store == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("profile: encode: %w", err)
	}
	if err := store.SetItem(CookieName, string(raw), cookies.Session(), "/", "", false); err != nil {
		return fmt.Errorf("profile: save: %w", err)
	}
	return nil
}

// Load reads a profile previously written by Save.
func Load(store cookies.Store) (*Profile, bool) {
	raw, ok := store.GetItem(CookieName)
	if !ok || raw == "" {
		return nil, false
	}
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false
	}
	return &p, true
}

package beacon

import "strconv"

// Navigation holds the browser's navigation timing, as milliseconds since the
// epoch. A nil *Navigation means the timing API is unavailable.
type Navigation struct {
	NavigationStart int64 `json:"navigationStart"`
	ResponseEnd     int64 `json:"responseEnd"`
	DOMInteractive  int64 `json:"domInteractive"`
	LoadEventStart  int64 `json:"loadEventStart"`
}

// Marks are timestamps the page records itself (t_pagestart, t_headend ...).
// Zero means the mark was never set.
type Marks struct {
	PageStart int64 `json:"t_pagestart"`
	DOMReady  int64 `json:"t_domready"`
	HeadEnd   int64 `json:"t_headend"`
	BodyEnd   int64 `json:"t_bodyend"`
	JSStart   int64 `json:"t_jsstart"`
	JSEnd     int64 `json:"t_jsend"`
	CSSStart  int64 `json:"t_cssstart"`
	CSSEnd    int64 `json:"t_cssend"`
	OnLoad    int64 `json:"t_onload"`
}

// Timing is the input to Compute.
type Timing struct {
	Navigation *Navigation
	Marks      Marks
	// NavigationStart is the stored start of this navigation, used when the
	// timing API is unavailable.
	NavigationStart int64
	// Now stands in for marks the page never set.
	Now int64
}

// Prepare fills in what is known at DOM-ready: navigation timing overrides
// the page start mark, and a missing DOM-ready mark is taken from timing or
// from Now.
func (t *Timing) Prepare() {
	if t.Navigation != nil {
		t.Marks.PageStart = t.Navigation.ResponseEnd
	}
	if t.Marks.DOMReady == 0 {
		if t.Navigation != nil {
			t.Marks.DOMReady = t.Navigation.DOMInteractive
		} else {
			t.Marks.DOMReady = t.Now
		}
	}
}

// Compute derives the beacon timing variables in milliseconds. Variables
// whose inputs are missing are left out; t_done and t_onload are also left
// out when zero.
func Compute(t Timing) map[string]int64 {
	m := t.Marks
	out := make(map[string]int64)
	var done, onload int64
	if nav := t.Navigation; nav != nil {
		onload = nav.LoadEventStart - m.PageStart
		done = nav.ResponseEnd - nav.NavigationStart
	} else {
		loaded := m.OnLoad
		if loaded == 0 {
			loaded = t.Now
		}
		if t.NavigationStart != 0 && m.PageStart != 0 {
			done = m.PageStart - t.NavigationStart
			onload = loaded - m.PageStart
		}
	}
	if m.PageStart != 0 && m.DOMReady != 0 {
		out["t_domready"] = m.DOMReady - m.PageStart
		if m.HeadEnd != 0 {
			out["t_head"] = m.HeadEnd - m.PageStart
			if m.BodyEnd != 0 {
				out["t_body"] = m.BodyEnd - m.HeadEnd
			}
		}
	}
	if done != 0 {
		out["t_done"] = done
	}
	if onload != 0 {
		out["t_onload"] = onload
	}
	if m.JSStart != 0 && m.JSEnd != 0 {
		out["t_js"] = m.JSEnd - m.JSStart
	}
	if m.CSSStart != 0 && m.CSSEnd != 0 {
		out["t_css"] = m.CSSEnd - m.CSSStart
	}
	return out
}

func parseMillis(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

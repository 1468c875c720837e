package probe

import (
	"decadecity/dom"
)

const readyJS = `document.readyState === "complete"`

// featuresJS reports the facts profile.Detect works from. Keys match the
// JSON tags of profile.Features.
const featuresJS = `(() => {
  const img = new Image();
  const style = ["webkitTransform", "MozTransform", "OTransform", "transform"].filter((p) => p in img.style);
  const script = document.createElement("script");
  script.setAttribute("async", true);
  const conn = navigator.connection || {};
  let session = false;
  try { session = !!window.sessionStorage; } catch (e) {}
  return {
    svg: !!document.implementation.hasFeature("http://www.w3.org/TR/SVG11/feature#BasicStructure", "1.1"),
    style: style,
    ontouchstart: "ontouchstart" in window,
    maxTouchPoints: navigator.maxTouchPoints || navigator.msMaxTouchPoints || 0,
    json: typeof JSON !== "undefined",
    async: !!script.async,
    timing: !!(window.performance && window.performance.timing),
    sessionStorage: session,
    connectionType: conn.effectiveType || conn.type || ""
  };
})()`

const timingJS = `(() => {
  const t = window.performance && window.performance.timing;
  if (!t) { return null; }
  return {
    navigationStart: t.navigationStart,
    responseEnd: t.responseEnd,
    domInteractive: t.domInteractive,
    loadEventStart: t.loadEventStart
  };
})()`

// marksJS reads the page's own timing marks. Marks may be Date objects, so
// each is coerced to a number.
const marksJS = `(() => {
  const names = ["t_pagestart", "t_domready", "t_headend", "t_bodyend", "t_jsstart", "t_jsend", "t_cssstart", "t_cssend", "t_onload"];
  const out = {};
  for (const n of names) { out[n] = Math.floor(+window[n] || 0); }
  return out;
})()`

const windowJS = `({
  width: document.documentElement.clientWidth,
  height: document.documentElement.clientHeight,
  dpr: window.devicePixelRatio || 1,
  href: location.href,
  referrer: document.referrer
})`

type windowMetrics struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	DPR      float64 `json:"dpr"`
	Href     string  `json:"href"`
	Referrer string  `json:"referrer"`
}

func (w windowMetrics) window() dom.Window {
	return dom.Window{
		ClientWidth:      w.Width,
		ClientHeight:     w.Height,
		DevicePixelRatio: w.DPR,
		Href:             w.Href,
		Referrer:         w.Referrer,
	}
}

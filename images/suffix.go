package images

import (
	"math"
	"strconv"
	"strings"
)

// Suffix is the size token appended to an image id, following the Flickr
// naming convention the image bucket mirrors.
type Suffix string

const (
	SuffixSmall     Suffix = "_m" // 240px on the longest side
	SuffixSmall320  Suffix = "_n"
	SuffixMedium    Suffix = "" // the original upload size, 500px
	SuffixMedium640 Suffix = "_z"
	SuffixMedium800 Suffix = "_c"
	SuffixLarge     Suffix = "_b"
)

// Connection speed classifications.
const (
	SpeedFast = "fast"
	SpeedSlow = "slow"
)

// Viewport describes the rendering environment a suffix is chosen for.
type Viewport struct {
	Width        float64
	Height       float64
	PixelDensity float64
	Speed        string
}

// ParseViewport builds a Viewport from loosely typed inputs such as flags or
// query parameters. Numbers are read like parseInt: a leading integer is
// used and anything unparsable becomes 0.
func ParseViewport(width, height, pixelDensity, speed string) Viewport {
	return Viewport{
		Width:        float64(ParseInt(width)),
		Height:       float64(ParseInt(height)),
		PixelDensity: float64(ParseInt(pixelDensity)),
		Speed:        speed,
	}
}

// ParseInt returns the optionally signed decimal integer at the start of s,
// or 0 when there is none.
func ParseInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// EffectiveWidth is the longest side of the viewport scaled by pixel density,
// truncated to a whole pixel. The longest side is used so a device that is
// rotated later still gets a large enough image.
func (v Viewport) EffectiveWidth() int {
	w, h, pd := finite(v.Width), finite(v.Height), finite(v.PixelDensity)
	if pd == 0 {
		pd = 1
	}
	eff := math.Trunc(math.Max(w, h) * pd)
	switch {
	case math.IsNaN(eff) || math.IsInf(eff, 0):
		return 0
	case eff >= math.MaxInt32:
		return math.MaxInt32
	case eff <= math.MinInt32:
		return math.MinInt32
	}
	return int(eff)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// NormalizeSpeed maps anything other than "fast" to "slow".
func NormalizeSpeed(speed string) string {
	if speed == SpeedFast {
		return SpeedFast
	}
	return SpeedSlow
}

// SelectSuffix picks the image size for a viewport. The thresholds are the
// widths at which the next Flickr size stops being upscaled.
func SelectSuffix(width, height, pixelDensity float64, speed string) Suffix {
	return Viewport{Width: width, Height: height, PixelDensity: pixelDensity, Speed: speed}.Suffix()
}

// Suffix applies SelectSuffix to v.
func (v Viewport) Suffix() Suffix {
	w := v.EffectiveWidth()
	switch {
	case w < 280 || NormalizeSpeed(v.Speed) == SpeedSlow:
		return SuffixSmall
	case w < 320:
		return SuffixSmall320
	case w < 500:
		return SuffixMedium
	case w < 640:
		return SuffixMedium640
	case w < 800:
		return SuffixMedium800
	default:
		return SuffixLarge
	}
}

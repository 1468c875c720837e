package images

import "strings"

const (
	// DefaultBucket is the S3 bucket the site images live in.
	DefaultBucket = "decadecity"
	s3Host        = "//s3-eu-west-1.amazonaws.com/"
)

// Rewriter maps image URLs onto their size and SVG variants.
type Rewriter struct {
	// Prefix is the protocol-relative base every rewritable image lives
	// under, ending in "/".
	Prefix string
}

// NewRewriter returns a Rewriter for the images folder of bucket. An empty
// bucket selects DefaultBucket.
func NewRewriter(bucket string) Rewriter {
	bucket = strings.Trim(strings.TrimSpace(bucket), "/")
	if bucket == "" {
		bucket = DefaultBucket
	}
	return Rewriter{Prefix: s3Host + bucket + "/images/"}
}

// stripScheme drops a leading http:, https: or file: so hosted URLs compare
// in their protocol-relative form.
func stripScheme(src string) string {
	for _, scheme := range []string{"https:", "http:", "file:"} {
		if strings.HasPrefix(src, scheme) {
			return src[len(scheme):]
		}
	}
	return src
}

// splitQuery separates src at the first '?' or '#'.
func splitQuery(src string) (path, rest string) {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		return src[:i], src[i:]
	}
	return src, ""
}

// hostedImage is a URL under the rewriter prefix whose final segment reads
// <id>[_suffix].<ext>.
type hostedImage struct {
	id    string
	ext   string
	query string
}

func (r Rewriter) parse(src string) (hostedImage, bool) {
	if r.Prefix == "" {
		return hostedImage{}, false
	}
	rest, ok := strings.CutPrefix(stripScheme(src), r.Prefix)
	if !ok {
		return hostedImage{}, false
	}
	segment, query := splitQuery(rest)
	if segment == "" || strings.Contains(segment, "/") {
		return hostedImage{}, false
	}
	idEnd := strings.IndexAny(segment, "_.")
	dot := strings.LastIndexByte(segment, '.')
	if idEnd <= 0 || dot < 0 {
		return hostedImage{}, false
	}
	return hostedImage{id: segment[:idEnd], ext: segment[dot+1:], query: query}, true
}

// Hosted reports whether src is an image the rewriter can resize.
func (r Rewriter) Hosted(src string) bool {
	_, ok := r.parse(src)
	return ok
}

// SizeVariant returns src rewritten to carry suffix in place of any existing
// size token. The result is protocol-relative. URLs that are not hosted
// images are returned untouched.
func (r Rewriter) SizeVariant(src string, suffix Suffix) string {
	img, ok := r.parse(src)
	if !ok {
		return src
	}
	return r.Prefix + img.id + string(suffix) + "." + img.ext + img.query
}

// SVGVariant swaps the extension of the final path segment for ".svg",
// keeping any query string. A segment without an extension is left as is.
func SVGVariant(src string) string {
	path, query := splitQuery(src)
	slash := strings.LastIndexByte(path, '/')
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 || dot < slash {
		return src
	}
	return path[:dot] + ".svg" + query
}

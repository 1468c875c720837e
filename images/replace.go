package images

import (
	"context"
	"strings"

	"github.com/aymerick/douceur/css"
	"golang.org/x/net/html"

	"decadecity/dom"
)

// HolderClass marks the off-screen container placeholders load in.
const HolderClass = "image-preload"

// holderStyle keeps the container out of layout while its images load.
var holderStyle = []*css.Declaration{
	{Property: "position", Value: "absolute"},
	{Property: "left", Value: "-9999px"},
	{Property: "width", Value: "1px"},
	{Property: "height", Value: "1px"},
	{Property: "overflow", Value: "hidden"},
}

func inlineStyle(decls []*css.Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, " ")
}

// preloadHolder is the hidden container for one replacement pass. It joins
// the document with its first placeholder and leaves once it is empty.
type preloadHolder struct {
	doc  *dom.Document
	node *html.Node
}

func newPreloadHolder(doc *dom.Document) *preloadHolder {
	div := dom.CreateElement("div")
	dom.SetAttr(div, "class", HolderClass)
	dom.SetAttr(div, "style", inlineStyle(holderStyle))
	dom.SetAttr(div, "aria-hidden", "true")
	return &preloadHolder{doc: doc, node: div}
}

func (h *preloadHolder) add(img *html.Node) {
	h.node.AppendChild(img)
	if h.node.Parent == nil {
		parent := h.doc.Body()
		if parent == nil {
			parent = h.doc.Root
		}
		parent.AppendChild(h.node)
	}
}

// clear removes the container from the document when it holds no images.
func (h *preloadHolder) clear() {
	if len(dom.QueryAll(h.node, "img")) == 0 {
		dom.Detach(h.node)
	}
}

// ReplaceResponsive rewrites every img.responsive to the session suffix. Each
// replacement is first loaded through a placeholder in a hidden container;
// the visible image switches only once that load succeeds, so it never
// flashes empty. It returns the number of preloads started.
//
// Placeholders whose load fails stay in the container.
func (m *Images) ReplaceResponsive(ctx context.Context, doc *dom.Document) int {
	nodes := doc.QueryAll("img." + ResponsiveClass)
	if len(nodes) == 0 {
		return 0
	}
	holder := newPreloadHolder(doc)
	suffix := m.session.Suffix()
	started := 0
	for _, content := range nodes {
		src := dom.GetAttr(content, "src")
		if !m.rewriter.Hosted(src) {
			continue
		}
		next := m.rewriter.SizeVariant(src, suffix)
		if next == src || next == stripScheme(src) {
			continue
		}
		m.preload(ctx, doc, holder, content, next)
		started++
	}
	holder.clear()
	return started
}

func (m *Images) preload(ctx context.Context, doc *dom.Document, holder *preloadHolder, content *html.Node, next string) {
	cache := dom.CreateElement("img")
	dom.SetAttr(cache, "src", next)
	dom.SetAttr(cache, "alt", "")
	holder.add(cache)
	target := doc.Resolve(next)
	doc.Async(func() error {
		return m.loader.Load(ctx, target)
	}, func(err error) {
		if err != nil {
			m.logger.Printf("IMG preload failed %s: %v", target, err)
			return
		}
		dom.SetAttr(content, "src", next)
		dom.Detach(cache)
		holder.clear()
	})
}

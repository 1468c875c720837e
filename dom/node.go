package dom

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// GetAttr returns the value of the named attribute (case-insensitive) or "".
func GetAttr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets or adds the named attribute.
func SetAttr(n *html.Node, name, val string) {
	if n == nil {
		return
	}
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: strings.ToLower(name), Val: val})
}

// HasClass reports whether the class list of n contains want.
func HasClass(n *html.Node, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return false
	}
	for _, c := range strings.Fields(GetAttr(n, "class")) {
		if c == want {
			return true
		}
	}
	return false
}

// AddClass appends cls to the class list unless it is already present.
func AddClass(n *html.Node, cls string) {
	cls = strings.TrimSpace(cls)
	if n == nil || cls == "" || HasClass(n, cls) {
		return
	}
	classes := strings.Fields(GetAttr(n, "class"))
	classes = append(classes, cls)
	SetAttr(n, "class", strings.Join(classes, " "))
}

// RemoveClass drops every occurrence of cls from the class list.
// The attribute itself is kept (possibly empty), like classList.remove.
func RemoveClass(n *html.Node, cls string) {
	if n == nil || !HasClass(n, cls) {
		return
	}
	classes := strings.Fields(GetAttr(n, "class"))
	kept := classes[:0]
	for _, c := range classes {
		if c != cls {
			kept = append(kept, c)
		}
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}

// CreateElement returns a detached element node for tag.
func CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// IsAttached reports whether n is reachable from root through parent links.
func IsAttached(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// FirstByTag performs a DFS and returns the first element with the given tag name.
func FirstByTag(n *html.Node, name string) *html.Node {
	if n == nil {
		return nil
	}
	var dfs func(*html.Node) *html.Node
	dfs = func(x *html.Node) *html.Node {
		if x.Type == html.ElementNode && strings.EqualFold(x.Data, name) {
			return x
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			if r := dfs(c); r != nil {
				return r
			}
		}
		return nil
	}
	return dfs(n)
}

// QueryAll returns every element under n matching the CSS selector group.
// An invalid selector yields no matches.
func QueryAll(n *html.Node, selector string) []*html.Node {
	if n == nil {
		return nil
	}
	sel, err := compile(selector)
	if err != nil {
		return nil
	}
	return cascadia.QueryAll(n, sel)
}

// Query returns the first element under n matching selector, or nil.
func Query(n *html.Node, selector string) *html.Node {
	if n == nil {
		return nil
	}
	sel, err := compile(selector)
	if err != nil {
		return nil
	}
	return cascadia.Query(n, sel)
}

// ValidSelector reports whether selector parses as a CSS selector group.
func ValidSelector(selector string) bool {
	_, err := compile(selector)
	return err == nil
}

func compile(selector string) (cascadia.Matcher, error) {
	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, err
	}
	return group, nil
}

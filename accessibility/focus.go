package accessibility

import (
	"fmt"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"

	"decadecity/dom"
)

// DefaultFocusCSS highlights focused controls.
const DefaultFocusCSS = `a:focus, button:focus, input:focus, select:focus, textarea:focus, [tabindex]:focus {
  outline: 2px solid #f90;
  outline-offset: 2px;
}`

// styleID marks the injected element so repeated calls replace it.
const styleID = "keyboard-focus"

// ScopeFocusStyles rewrites every selector in src so it only applies below
// the keyboard class on the root element. Rules nested in @media and
// @supports blocks are scoped too; other at-rules pass through.
func ScopeFocusStyles(src string) (string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", nil
	}
	sheet, err := parser.Parse(src)
	if err != nil {
		return "", fmt.Errorf("accessibility: parse focus css: %w", err)
	}
	if err := scopeRules(sheet.Rules); err != nil {
		return "", err
	}
	return sheet.String(), nil
}

func scopeRules(rules []*css.Rule) error {
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		if rule.Kind == css.AtRule {
			if rule.EmbedsRules() && rule.Name != "@keyframes" {
				if err := scopeRules(rule.Rules); err != nil {
					return err
				}
			}
			continue
		}
		for i, sel := range rule.Selectors {
			scoped := scopeSelector(sel)
			if !dom.ValidSelector(scoped) {
				return fmt.Errorf("accessibility: invalid selector %q", sel)
			}
			rule.Selectors[i] = scoped
		}
	}
	return nil
}

// scopeSelector attaches the keyboard class to a leading html/:root compound
// selector, or prefixes the selector with it.
func scopeSelector(sel string) string {
	sel = strings.TrimSpace(sel)
	scope := "." + KeyboardClass
	for _, root := range []string{"html", ":root"} {
		if !strings.HasPrefix(strings.ToLower(sel), root) {
			continue
		}
		rest := sel[len(root):]
		if rest == "" || strings.ContainsRune(" .#:[>+~", rune(rest[0])) {
			return sel[:len(root)] + scope + rest
		}
	}
	return scope + " " + sel
}

// InjectFocusStyles scopes src (DefaultFocusCSS when empty) and places it in a
// <style> element in the document head, replacing an earlier injection.
func InjectFocusStyles(doc *dom.Document, src string) error {
	if strings.TrimSpace(src) == "" {
		src = DefaultFocusCSS
	}
	scoped, err := ScopeFocusStyles(src)
	if err != nil {
		return err
	}
	head := doc.Head()
	if head == nil {
		return fmt.Errorf("accessibility: document has no head")
	}
	if old := dom.Query(head, "style#"+styleID); old != nil {
		dom.Detach(old)
	}
	style := dom.CreateElement("style")
	dom.SetAttr(style, "id", styleID)
	style.AppendChild(&html.Node{Type: html.TextNode, Data: scoped})
	head.AppendChild(style)
	return nil
}

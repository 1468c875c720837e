// Package accessibility marks keyboard users so focus outlines are only drawn
// for them.
package accessibility

import (
	"decadecity/dom"
)

// KeyboardClass is added to the root element once a key has been pressed.
const KeyboardClass = "keyboard"

// Init listens for the first keydown on doc. That event adds KeyboardClass to
// the root element and the listener removes itself.
func Init(doc *dom.Document) {
	var remove func()
	remove = doc.AddEventListener("keydown", func(dom.Event) {
		if root := doc.HTML(); root != nil {
			dom.AddClass(root, KeyboardClass)
		}
		remove()
	})
}

// KeyboardUser reports whether doc has seen keyboard input.
func KeyboardUser(doc *dom.Document) bool {
	root := doc.HTML()
	return root != nil && dom.HasClass(root, KeyboardClass)
}

package dom

// Event is delivered to document listeners.
type Event struct {
	Type string
	Key  string
}

// AddEventListener registers fn for events of type typ and returns a function
// that removes the registration. Calling the returned function more than once
// is harmless.
func (d *Document) AddEventListener(typ string, fn func(Event)) (remove func()) {
	d.nextID++
	l := &listener{id: d.nextID, fn: fn}
	d.listeners[typ] = append(d.listeners[typ], l)
	return func() { d.removeListener(typ, l.id) }
}

func (d *Document) removeListener(typ string, id int) {
	ls := d.listeners[typ]
	for i, l := range ls {
		if l.id == id {
			d.listeners[typ] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// Listeners returns how many listeners are registered for typ.
func (d *Document) Listeners(typ string) int { return len(d.listeners[typ]) }

// Dispatch delivers ev to every listener registered for ev.Type at the time
// of the call. Listeners removed during dispatch still see this event.
func (d *Document) Dispatch(ev Event) {
	ls := append([]*listener(nil), d.listeners[ev.Type]...)
	for _, l := range ls {
		l.fn(ev)
	}
}

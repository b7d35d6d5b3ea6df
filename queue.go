package reactor

// eventList is an intrusive doubly-linked, insertion-ordered list of
// *Event. The registered-events list and each priority's active queue
// are both this structure, distinguished only by which pair of next/prev
// fields on Event they thread through.
type eventList struct {
	head, tail *Event
	n          int
}

func (l *eventList) pushBack(ev *Event, next, prev func(*Event) **Event) {
	*prev(ev) = l.tail
	*next(ev) = nil
	if l.tail != nil {
		*next(l.tail) = ev
	} else {
		l.head = ev
	}
	l.tail = ev
	l.n++
}

func (l *eventList) remove(ev *Event, next, prev func(*Event) **Event) {
	if p := *prev(ev); p != nil {
		*next(p) = *next(ev)
	} else {
		l.head = *next(ev)
	}
	if nx := *next(ev); nx != nil {
		*prev(nx) = *prev(ev)
	} else {
		l.tail = *prev(ev)
	}
	*next(ev) = nil
	*prev(ev) = nil
	l.n--
}

func regNextField(ev *Event) **Event { return &ev.regNext }
func regPrevField(ev *Event) **Event { return &ev.regPrev }
func actNextField(ev *Event) **Event { return &ev.actNext }
func actPrevField(ev *Event) **Event { return &ev.actPrev }

func (l *eventList) pushRegistered(ev *Event) { l.pushBack(ev, regNextField, regPrevField) }
func (l *eventList) removeRegistered(ev *Event) { l.remove(ev, regNextField, regPrevField) }
func (l *eventList) pushActive(ev *Event)     { l.pushBack(ev, actNextField, actPrevField) }
func (l *eventList) removeActive(ev *Event)   { l.remove(ev, actNextField, actPrevField) }

// forEach walks the list front-to-back. The callback must not mutate list
// membership of ev.
func (l *eventList) forEach(next func(*Event) **Event, fn func(*Event)) {
	for ev := l.head; ev != nil; {
		n := *next(ev)
		fn(ev)
		ev = n
	}
}

package voice

type generator interface {
	start(freq, velocity float64)
	stop()
	render() float64
	idle() bool
	level() float64
}

type pending struct {
	note  Note
	delay int
}

// unit is the Voice implementation shared by every kind: a bank of
// generators, a queue of delayed triggers and a gate countdown per slot.
type unit struct {
	kind     Kind
	gain     float64
	gens     []generator
	gates    []int
	queue    []pending
	disposed bool
}

func newUnit(kind Kind, polyphony int, gain float64, mk func() generator) *unit {
	if polyphony <= 0 {
		polyphony = 1
	}
	u := &unit{
		kind:  kind,
		gain:  gain,
		gens:  make([]generator, polyphony),
		gates: make([]int, polyphony),
	}
	for i := range u.gens {
		u.gens[i] = mk()
	}
	return u
}

func (u *unit) Kind() Kind { return u.kind }

func (u *unit) Trigger(n Note, delay int) {
	if u.disposed {
		return
	}
	if delay < 0 {
		delay = 0
	}
	if n.Gate < 1 {
		n.Gate = 1
	}
	u.queue = append(u.queue, pending{note: n, delay: delay})
}

func (u *unit) Render() float32 {
	if u.disposed {
		return 0
	}
	if len(u.queue) > 0 {
		kept := u.queue[:0]
		for _, p := range u.queue {
			if p.delay == 0 {
				u.start(p.note)
				continue
			}
			p.delay--
			kept = append(kept, p)
		}
		u.queue = kept
	}
	var sum float64
	for i, g := range u.gens {
		if u.gates[i] > 0 {
			u.gates[i]--
			if u.gates[i] == 0 {
				g.stop()
			}
		}
		if g.idle() {
			continue
		}
		sum += g.render()
	}
	return float32(sum * u.gain)
}

func (u *unit) start(n Note) {
	slot := u.steal()
	u.gates[slot] = n.Gate
	u.gens[slot].start(n.Freq, n.Velocity)
}

// steal returns a free slot, or the quietest one when all are busy.
func (u *unit) steal() int {
	for i, g := range u.gens {
		if g.idle() && u.gates[i] == 0 {
			return i
		}
	}
	quiet := 0
	minLevel := u.gens[0].level()
	for i := 1; i < len(u.gens); i++ {
		if l := u.gens[i].level(); l < minLevel {
			minLevel = l
			quiet = i
		}
	}
	return quiet
}

func (u *unit) Cancel() {
	u.queue = u.queue[:0]
}

func (u *unit) Release() {
	u.Cancel()
	for i, g := range u.gens {
		u.gates[i] = 0
		g.stop()
	}
}

func (u *unit) Active() int {
	n := len(u.queue)
	for _, g := range u.gens {
		if !g.idle() {
			n++
		}
	}
	return n
}

func (u *unit) Dispose() {
	if u.disposed {
		return
	}
	u.disposed = true
	u.queue = nil
	u.gens = nil
	u.gates = nil
}

package resource

// store is a slot array with a free list. Handles are 1-based indexes;
// freed slots are reused last-in first-out.
type store struct {
	slots    []slot
	freeList []Handle
	live     int
}

type slot struct {
	value Value
	valid bool
}

func newStore() *store {
	return &store{
		slots:    make([]slot, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

func (s *store) put(v Value) Handle {
	s.live++
	if n := len(s.freeList); n > 0 {
		h := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		s.slots[h-1] = slot{value: v, valid: true}
		return h
	}
	s.slots = append(s.slots, slot{value: v, valid: true})
	return Handle(len(s.slots))
}

func (s *store) get(h Handle) (Value, bool) {
	if h == 0 || int(h) > len(s.slots) {
		return nil, false
	}
	e := s.slots[h-1]
	if !e.valid {
		return nil, false
	}
	return e.value, true
}

func (s *store) take(h Handle) (Value, bool) {
	v, ok := s.get(h)
	if !ok {
		return nil, false
	}
	s.slots[h-1] = slot{}
	s.freeList = append(s.freeList, h)
	s.live--
	return v, true
}

// each visits live slots in handle order until fn returns false.
func (s *store) each(fn func(Handle, Value) bool) {
	for i, e := range s.slots {
		if e.valid && !fn(Handle(i+1), e.value) {
			return
		}
	}
}

func (s *store) handles() []Handle {
	out := make([]Handle, 0, s.live)
	s.each(func(h Handle, _ Value) bool {
		out = append(out, h)
		return true
	})
	return out
}

func (s *store) len() int { return s.live }

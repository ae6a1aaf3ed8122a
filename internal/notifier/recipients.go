package notifier

import "slices"

// RecipientSet is an add-only set of chat ids.
type RecipientSet struct {
	ids map[int64]struct{}
}

func NewRecipientSet(ids ...int64) *RecipientSet {
	s := &RecipientSet{ids: make(map[int64]struct{}, len(ids))}
	s.Union(ids)
	return s
}

func (s *RecipientSet) Add(id int64) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Union adds ids and returns the ones that were not known before.
func (s *RecipientSet) Union(ids []int64) []int64 {
	var added []int64
	for _, id := range ids {
		if s.Add(id) {
			added = append(added, id)
		}
	}
	return added
}

func (s *RecipientSet) Has(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *RecipientSet) Len() int { return len(s.ids) }

// Sorted returns the ids in ascending order.
func (s *RecipientSet) Sorted() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

package IO

// LabelSet numbers the distinct labels of a store in order of first occurrence.
type LabelSet struct {
	index map[string]int
	names []string
}

func LabelsOf(s *Store) *LabelSet {
	l := &LabelSet{index: make(map[string]int)}
	for _, rec := range s.records {
		if _, ok := l.index[rec.Label]; !ok {
			l.index[rec.Label] = len(l.names)
			l.names = append(l.names, rec.Label)
		}
	}
	return l
}

func (l *LabelSet) Len() int {
	return len(l.names)
}

func (l *LabelSet) Index(label string) (int, bool) {
	i, ok := l.index[label]
	return i, ok
}

func (l *LabelSet) Names() []string {
	return append([]string(nil), l.names...)
}

package geometry

// PageMap maps user-facing page indexes onto document pages. A user sequence
// may repeat and reorder document pages: 0, 2, 2, 3 shows document page 2
// twice. Without a sequence the mapping is the identity.
//
// The zero PageMap is not usable; create one with NewPageMap.
type PageMap struct {
	userPages []int // nil for identity
	groups    []int
	count     int
}

// NewPageMap creates a mapping for a document with docPages pages. A nil or
// empty userPages slice yields the identity mapping.
func NewPageMap(userPages []int, docPages int) PageMap {
	if len(userPages) == 0 {
		return PageMap{count: max(docPages, 0)}
	}
	pages := append([]int(nil), userPages...)
	return PageMap{
		userPages: pages,
		groups:    CacheGroups(pages),
		count:     len(pages),
	}
}

// Mapped reports whether an explicit user page sequence is in use.
func (m PageMap) Mapped() bool { return m.userPages != nil }

// Len returns the number of user pages.
func (m PageMap) Len() int { return m.count }

// UserPages returns a copy of the user page sequence, or nil for the
// identity mapping.
func (m PageMap) UserPages() []int {
	if m.userPages == nil {
		return nil
	}
	return append([]int(nil), m.userPages...)
}

// DocumentPage returns the document page shown at a user page, or -1 when the
// user page is out of range or maps to a negative page.
func (m PageMap) DocumentPage(user int) int {
	if user < 0 || user >= m.count {
		return -1
	}
	if m.userPages == nil {
		return user
	}
	if doc := m.userPages[user]; doc >= 0 {
		return doc
	}
	return -1
}

// CacheGroup returns the index shared by all consecutive user pages showing
// the same document page. Without a mapping it equals the user page.
func (m PageMap) CacheGroup(user int) int {
	if m.userPages == nil || user < 0 || user >= len(m.groups) {
		return user
	}
	return m.groups[user]
}

// ValidPage clamps a requested user page into [0, Len()-1]. Negative input
// and empty documents yield 0.
func (m PageMap) ValidPage(user int) int {
	if user <= 0 {
		return 0
	}
	if user >= m.count {
		return max(m.count-1, 0)
	}
	return user
}

// Dedup drops consecutive repeats: (0, 1, 2, 2, 3) becomes (0, 1, 2, 3).
func Dedup(pages []int) []int {
	out := make([]int, 0, len(pages))
	for i, p := range pages {
		if i == 0 || pages[i-1] != p {
			out = append(out, p)
		}
	}
	return out
}

// CacheGroups assigns each position the index of its run of equal pages:
// (0, 4, 4, 6, 6, 6, 3) becomes (0, 1, 1, 2, 2, 2, 3).
func CacheGroups(pages []int) []int {
	out := make([]int, len(pages))
	index := 0
	for i := 1; i < len(pages); i++ {
		if pages[i] != pages[i-1] {
			index++
		}
		out[i] = index
	}
	return out
}

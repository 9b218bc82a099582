package entity

// IsVisible reports whether rec should appear in normal application views:
// live only when neither the record nor any record on its ancestor chain
// carries a tombstone. A record whose own tombstone is unset is still
// hidden while any ancestor is tombstoned.
//
// Every read path must go through this predicate (or a query filter with
// identical semantics) so that deletion state is interpreted uniformly.
func IsVisible(rec Record, ancestors ...Record) bool {
	if rec.Tombstoned() {
		return false
	}
	for _, anc := range ancestors {
		if anc.Tombstoned() {
			return false
		}
	}
	return true
}

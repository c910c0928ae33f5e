// Package strings carries small string-slice helpers shared by the
// auth packages.
package strings

// MergeUnique flattens the given lists into one slice, keeping the
// first occurrence of each value and dropping empty strings. Earlier
// lists win the ordering, so callers can rank their sources.
func MergeUnique(lists ...[]string) []string {
	var total int
	for _, list := range lists {
		total += len(list)
	}
	if total == 0 {
		return nil
	}

	seen := make(map[string]struct{}, total)
	merged := make([]string, 0, total)
	for _, list := range lists {
		for _, v := range list {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			merged = append(merged, v)
		}
	}
	return merged
}

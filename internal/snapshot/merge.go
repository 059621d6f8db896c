package snapshot

// MergeBlobs applies successive tiers of blobs in increasing precedence:
// for two entries sharing a canonical kind, the later tier wins; unknown
// kinds present in only one tier are preserved additively. Used for the
// save-side cached -> fresh -> coordinator merge (§4.2 step 5).
func MergeBlobs(tiers ...[]Blob) []Blob {
	order := make([]Kind, 0)
	byKind := make(map[Kind]Blob)

	for _, tier := range tiers {
		for _, b := range tier {
			if _, exists := byKind[b.Kind]; !exists {
				order = append(order, b.Kind)
			}
			byKind[b.Kind] = b
		}
	}

	out := make([]Blob, 0, len(order))
	for _, k := range order {
		out = append(out, byKind[k])
	}
	return SortByKind(out)
}

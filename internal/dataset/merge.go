package dataset

// Merge appends update to original and drops rows whose id was already seen,
// so the first occurrence wins and the relative order is kept.
func Merge(original, update []Movie) []Movie {
	seen := make(map[int64]struct{}, len(original)+len(update))
	out := make([]Movie, 0, len(original)+len(update))
	for _, rows := range [][]Movie{original, update} {
		for _, m := range rows {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// IDRange returns the smallest and largest id of rows. ok is false for an
// empty table.
func IDRange(rows []Movie) (lowest, highest int64, ok bool) {
	for i, m := range rows {
		if i == 0 || m.ID < lowest {
			lowest = m.ID
		}
		if i == 0 || m.ID > highest {
			highest = m.ID
		}
	}
	return lowest, highest, len(rows) > 0
}

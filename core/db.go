package core

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// CleanOrderings drops orderings on fields that are not in `allowed`.
func CleanOrderings(orderings []DBOrdering, allowed ...string) []DBOrdering {
	if orderings == nil {
		return nil
	}
	cleaned := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		for _, fld := range allowed {
			if ord.Field == fld {
				cleaned = append(cleaned, ord)
				break
			}
		}
	}
	return cleaned
}

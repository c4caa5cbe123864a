package engagements

// Apply returns the records matching every constraint in c, in input order, truncated to c.Limit.
// records is never modified.
func Apply(records []Record, c Criteria) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !c.matches(r) {
			continue
		}
		out = append(out, r)
		if c.Limit > 0 && len(out) == c.Limit {
			break
		}
	}
	return out
}

func (c Criteria) matches(r Record) bool {
	if c.Type != "" && r.Type != c.Type {
		return false
	}
	if c.Source != "" && r.Source != c.Source {
		return false
	}
	if c.UserID != "" && r.UserID != c.UserID {
		return false
	}
	if c.HasDateRange() && (r.Timestamp.Before(*c.Start) || r.Timestamp.After(*c.End)) {
		return false
	}
	if c.MinScore != nil && r.Score < *c.MinScore {
		return false
	}
	if c.MaxScore != nil && r.Score > *c.MaxScore {
		return false
	}
	return true
}

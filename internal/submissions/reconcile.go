package submissions

// The functions below are the reconciliation state machine
// Placeholder -> Confirmed | Failed, expressed over plain slices.

func indexOfCorrelation(list []Submission, correlationID string) int {
	for i, s := range list {
		if s.Phase == PhasePlaceholder && (s.CorrelationID == correlationID || s.ID == correlationID) {
			return i
		}
	}
	return -1
}

func indexOfID(list []Submission, id string) int {
	for i, s := range list {
		if s.ID == id && s.Phase != PhasePlaceholder {
			return i
		}
	}
	return -1
}

// insertPlaceholder puts p at the head of the collection. A correlation id
// may only have one pending placeholder.
func insertPlaceholder(list []Submission, p Submission) ([]Submission, bool) {
	if indexOfCorrelation(list, p.CorrelationID) >= 0 {
		return list, false
	}
	p = p.clone()
	p.Phase = PhasePlaceholder
	out := make([]Submission, 0, len(list)+1)
	out = append(out, p)
	return append(out, list...), true
}

// confirm replaces the placeholder for correlationID with the server record,
// keeping its position. When the record already arrived by another path the
// placeholder is dropped so the collection holds it exactly once.
func confirm(list []Submission, correlationID string, record Submission) ([]Submission, bool) {
	record = record.clone()
	record.Phase = PhaseConfirmed
	record.Error = ""
	if record.CorrelationID == "" {
		record.CorrelationID = correlationID
	}

	i := indexOfCorrelation(list, correlationID)
	j := indexOfID(list, record.ID)
	switch {
	case i >= 0 && j >= 0:
		list[j] = record
		return append(list[:i], list[i+1:]...), true
	case i >= 0:
		list[i] = record
		return list, true
	case j >= 0:
		list[j] = record
		return list, true
	default:
		return list, false
	}
}

// fail keeps the placeholder visible, marked with the error.
func fail(list []Submission, correlationID, message string) ([]Submission, bool) {
	i := indexOfCorrelation(list, correlationID)
	if i < 0 {
		return list, false
	}
	list[i].Phase = PhaseFailed
	list[i].Status = boolPtr(false)
	list[i].Error = message
	return list, true
}

// merge installs a fresh server list while keeping local entries the server
// does not know about yet: pending placeholders and failed submissions.
func merge(local, server []Submission) []Submission {
	known := make(map[string]bool, len(server))
	for _, s := range server {
		known[s.ID] = true
		if s.CorrelationID != "" {
			known[s.CorrelationID] = true
		}
	}

	out := make([]Submission, 0, len(local)+len(server))
	for _, s := range local {
		if s.Phase != PhasePlaceholder && s.Phase != PhaseFailed {
			continue
		}
		if !known[s.CorrelationID] {
			out = append(out, s)
		}
	}
	for _, s := range server {
		s = s.clone()
		s.Phase = PhaseConfirmed
		out = append(out, s)
	}
	return out
}

func applyVerdict(list []Submission, v Verdict) ([]Submission, bool) {
	i := indexOfID(list, v.SubmissionID)
	if i < 0 {
		return list, false
	}
	cur := list[i]
	if equalBoolPtr(cur.Status, v.Status) && equalFloatPtr(cur.Score, v.Score) {
		return list, false
	}
	updated := Submission{Status: v.Status, Score: v.Score}.clone()
	list[i].Status = updated.Status
	list[i].Score = updated.Score
	return list, true
}

func equalBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

package classifier

// Category is a single confidence-scored label assigned to a prompt.
type Category struct {
	// Name is the category label from the classifier's vocabulary.
	Name string `json:"name"`

	// Confidence is the classifier's score for this label, in [0,1].
	Confidence float64 `json:"confidence"`

	// Evidence is the prompt substring supporting the label (may be empty).
	Evidence string `json:"evidence,omitempty"`
}

// Result is the structured classification of one prompt. It is immutable
// once produced and owned by the orchestrator for the duration of a request.
type Result struct {
	// Categories in classifier output order. Order is not significant for
	// evaluation but is preserved for audit.
	Categories []Category `json:"categories"`

	// PrimaryCategory is the highest-confidence category name; ties break
	// to the first encountered in classifier output.
	PrimaryCategory string `json:"primary_category"`

	// OverallConfidence is the classifier's own confidence in the result,
	// in [0,1]. Not required to equal any category's confidence.
	OverallConfidence float64 `json:"overall_confidence"`
}

// BestByName collapses duplicate category names, keeping the entry with the
// highest confidence per name. Duplicates are malformed upstream data; the
// winner is chosen explicitly rather than by iteration order.
func (r *Result) BestByName() map[string]Category {
	best := make(map[string]Category, len(r.Categories))
	for _, cat := range r.Categories {
		if cur, ok := best[cat.Name]; !ok || cat.Confidence > cur.Confidence {
			best[cat.Name] = cat
		}
	}
	return best
}

// request is the wire request sent to the classification service.
type request struct {
	Prompt    string `json:"prompt"`
	RequestID string `json:"request_id"`
}

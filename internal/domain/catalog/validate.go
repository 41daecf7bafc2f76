package catalog

import "strings"

// ValidQuestion reports whether a question as delivered by the remote source
// is persistable: it must carry an identifier, text, and at least one answer.
func ValidQuestion(q Question) bool {
	if strings.TrimSpace(q.ID) == "" {
		return false
	}
	if strings.TrimSpace(q.Text) == "" {
		return false
	}
	return len(q.Answers) > 0
}

// FilterValidQuestions splits a batch into persistable questions and the
// number rejected. Invalid entries are dropped without affecting siblings.
func FilterValidQuestions(questions []Question) ([]Question, int) {
	valid := make([]Question, 0, len(questions))
	for _, q := range questions {
		if ValidQuestion(q) {
			valid = append(valid, q)
		}
	}
	return valid, len(questions) - len(valid)
}

package app

import "iq-test-service/internal/domain"

const (
	minIQ   = 80.0
	iqRange = 60.0
)

// Score grades answers against key and returns the IQ score and the number
// of correct answers. A question counts once even if it is answered twice;
// the first answer for it is the one graded. Unknown question ids are ignored.
func Score(answers []domain.Answer, key domain.AnswerKey) (float64, int) {
	seen := make(map[string]struct{}, len(answers))
	correct := 0
	for _, a := range answers {
		if _, dup := seen[a.QuestionID]; dup {
			continue
		}
		seen[a.QuestionID] = struct{}{}
		if label, ok := key[a.QuestionID]; ok && label == a.Answer {
			correct++
		}
	}
	return IQ(correct, len(key)), correct
}

// IQ maps the fraction of correct answers linearly onto [80, 140].
func IQ(correct, total int) float64 {
	if total <= 0 {
		return minIQ
	}
	return minIQ + float64(correct)/float64(total)*iqRange
}

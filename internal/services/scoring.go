package services

import (
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

// ScoreResult is the outcome of grading one submission.
type ScoreResult struct {
	Correct        int             `json:"correct"`
	Wrong          int             `json:"wrong"`
	Gradable       int             `json:"gradable"`
	Score          int             `json:"score"`
	MaxScore       int             `json:"max_score"`
	PercentCorrect float64         `json:"percent_correct"`
	Answers        []models.Answer `json:"answers"`
}

// ScoreSubmission grades answers against the form's questions. Only
// multiple choice and true/false questions are gradable; a gradable
// question without an answer counts as wrong. Answers are assumed to be
// validated already: unknown questions are ignored.
func ScoreSubmission(questions []models.Question, answers []validator.AnswerRequest) *ScoreResult {
	byQuestion := make(map[uint]validator.AnswerRequest, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	res := &ScoreResult{}
	for i := range questions {
		q := &questions[i]
		a, answered := byQuestion[q.ID]

		var answer *models.Answer
		if answered {
			answer = &models.Answer{
				QuestionID: q.ID,
				OptionID:   a.OptionID,
				OpenAnswer: a.OpenAnswer,
			}
		}

		if !q.Type.Gradable() {
			if answer != nil {
				res.Answers = append(res.Answers, *answer)
			}
			continue
		}

		res.Gradable++
		res.MaxScore += q.Points

		correct := false
		if answer != nil && answer.OptionID != nil {
			if opt := q.CorrectOption(); opt != nil && opt.ID == *answer.OptionID {
				correct = true
			}
		}
		if correct {
			res.Correct++
			res.Score += q.Points
		} else {
			res.Wrong++
		}
		if answer != nil {
			answer.IsCorrect = boolPtr(correct)
			res.Answers = append(res.Answers, *answer)
		}
	}

	if res.Gradable > 0 {
		res.PercentCorrect = round2(float64(res.Correct) / float64(res.Gradable) * 100)
	}
	return res
}

// Apply copies the counts onto a submission.
func (r *ScoreResult) Apply(s *models.Submission) {
	s.CorrectCount = r.Correct
	s.WrongCount = r.Wrong
	s.GradableCount = r.Gradable
	s.Score = r.Score
	s.MaxScore = r.MaxScore
	s.PercentCorrect = r.PercentCorrect
	s.Answers = r.Answers
}

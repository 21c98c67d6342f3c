/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package graffiti

// LocalPlayerState is one peer's private progression. It is never sent to
// other peers; only the sprays it allows are.
type LocalPlayerState struct {
	CurrentQuestionIndex int     `json:"currentQuestionIndex"`
	CanType              CanType `json:"canType"`
	CanPressure          float64 `json:"canPressure"`
	HasAnswered          bool    `json:"hasAnswered"`
	QuestionsAnswered    int     `json:"questionsAnswered"`
	CorrectAnswers       int     `json:"correctAnswers"`
}

// AnswerQuestion arms a full can: fat for a correct answer, skinny otherwise.
func (l *LocalPlayerState) AnswerQuestion(correct bool) {
	l.CanType = CanSkinny
	if correct {
		l.CanType = CanFat
		l.CorrectAnswers++
	}
	l.CanPressure = FullPressure
	l.HasAnswered = true
	l.QuestionsAnswered++
}

// ConsumePressure drains the can, never below zero. The drain that empties
// a held can drops it and moves on to the next question.
func (l *LocalPlayerState) ConsumePressure(amount float64) {
	l.CanPressure = max(0, l.CanPressure-amount)

	if l.CanPressure <= 0 && l.CanType != CanNone {
		l.CanType = CanNone
		l.HasAnswered = false
		l.CurrentQuestionIndex++
	}
}

func (l LocalPlayerState) CanSpray() bool {
	return l.CanType != CanNone && l.CanPressure > 0
}

// LocalPlayer pairs the progression with this game's question order.
type LocalPlayer struct {
	state LocalPlayerState
	deck  []Question
}

// Reset starts a fresh game with deck as the question order.
func (p *LocalPlayer) Reset(deck []Question) {
	p.state = LocalPlayerState{}
	p.deck = deck
}

func (p *LocalPlayer) State() LocalPlayerState {
	return p.state
}

// Current returns the question waiting for an answer. It is false once the
// deck is exhausted.
func (p *LocalPlayer) Current() (Question, bool) {
	i := p.state.CurrentQuestionIndex
	if i < 0 || i >= len(p.deck) {
		return Question{}, false
	}
	return p.deck[i], true
}

// Answer picks option for the current question and arms the can. It reports
// whether the answer was correct.
func (p *LocalPlayer) Answer(option int) (bool, error) {
	q, ok := p.Current()
	if !ok {
		return false, ErrOutOfQuestions
	}
	if p.state.HasAnswered {
		return false, ErrAlreadyAnswered
	}

	correct := q.IsCorrect(option)
	p.state.AnswerQuestion(correct)

	return correct, nil
}

func (p *LocalPlayer) Drain(amount float64) {
	p.state.ConsumePressure(amount)
}

func (p *LocalPlayer) CanSpray() bool {
	return p.state.CanSpray()
}

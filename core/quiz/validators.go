package quiz

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

var (
	answerLetterTag  = "answer_letter"
	answerLetterText = "answer must be one of A, B, C or D"

	maxAttemptsTag  = "max_attempts"
	maxAttemptsText = "max attempts must be -1 (unlimited) or at least 1"
)

// InitValidators registers the quiz validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(answerLetterTag, answerLetterValidation)
	core.RegisterCustomTranslation(validate, translator, answerLetterTag, answerLetterText)

	_ = validate.RegisterValidation(maxAttemptsTag, maxAttemptsValidation)
	core.RegisterCustomTranslation(validate, translator, maxAttemptsTag, maxAttemptsText)
}

func answerLetterValidation(fl validator.FieldLevel) bool {
	return isAnswerLetter(NormalizeAnswer(fl.Field().String()))
}

func maxAttemptsValidation(fl validator.FieldLevel) bool {
	n := fl.Field().Int()
	return n == UnlimitedAttempts || n >= 1
}

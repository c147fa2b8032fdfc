package bot

import (
	"errors"

	"github.com/schidstorm/pdf-bot/pkg/convert"
	"github.com/schidstorm/pdf-bot/pkg/ocr"
	"github.com/schidstorm/pdf-bot/pkg/sanitize"
)

const (
	ReplyGreeting     = "👋 Надішли мені зображення або скан, і я згенерую PDF з текстом!"
	ReplyHelp         = "Надішли фото, зображення файлом або просто текст, і я поверну PDF."
	ReplyNoTextFound  = "Не вдалося знайти текст на зображенні."
	ReplyEmptyText    = "Повідомлення порожнє, нічого перетворювати."
	ReplyBadImage     = "Не вдалося прочитати зображення. Спробуй інший формат (JPEG або PNG)."
	ReplyUnsupported  = "Цей тип файлу не підтримується. Надішли зображення або текст."
	ReplyTooLarge     = "Файл завеликий. Максимальний розмір 20 МБ."
	ReplyNotPrintable = "У тексті немає символів, які можна надрукувати."
	ReplyFailure      = "Вибач, щось пішло не так. Спробуй ще раз пізніше."
	CaptionTranslit   = "Шрифт з кирилицею недоступний, текст транслітеровано."
	CaptionStripped   = "⚠️ Шрифт недоступний, частину символів видалено."
)

// commandReply answers /start, /help and anything else starting with a slash.
func commandReply(command string) string {
	switch command {
	case "/start", "/help":
		return ReplyGreeting
	default:
		return ReplyHelp
	}
}

// Caption tells the user when the document does not show their text verbatim.
func Caption(doc convert.Document) string {
	switch doc.Step {
	case sanitize.StepTransliterated:
		return CaptionTranslit
	case sanitize.StepStripped:
		return CaptionStripped
	default:
		return ""
	}
}

// outcomeReply returns the text message that follows an outcome. Successful
// outcomes already delivered a document and need none.
func outcomeReply(kind Kind, outcome convert.Outcome) string {
	switch outcome.Kind {
	case convert.Success:
		return ""
	case convert.EmptyResult:
		if kind == KindText {
			return ReplyEmptyText
		}
		return ReplyNoTextFound
	}

	switch {
	case errors.Is(outcome.Reason, ocr.ErrDecode):
		return ReplyBadImage
	case errors.Is(outcome.Reason, convert.ErrNothingPrintable):
		return ReplyNotPrintable
	default:
		return ReplyFailure
	}
}

package chat

import "math/rand/v2"

var errorPhrases = []string{
	"Упс, что-то пошло не так. Попробуйте спросить ещё раз чуть позже.",
	"Кажется, я немного запутался. Давайте попробуем снова?",
	"Сервис сейчас перегружен. Повторите вопрос через минуту.",
	"Не получилось подготовить ответ. Попробуйте переформулировать вопрос.",
	"Произошла небольшая заминка. Я уже разбираюсь, спросите ещё раз.",
}

var thinkingPhrases = []string{
	"Думаю над вашим вопросом...",
	"Секунду, подбираю лучший ответ...",
	"Анализирую ваш запрос...",
	"Считаю и проверяю данные...",
}

// ErrorPhrase restituisce una frase d'errore localizzata da mostrare all'utente
func ErrorPhrase() string {
	return errorPhrases[rand.IntN(len(errorPhrases))]
}

// ThinkingPhrase restituisce una frase d'attesa localizzata
func ThinkingPhrase() string {
	return thinkingPhrases[rand.IntN(len(thinkingPhrases))]
}

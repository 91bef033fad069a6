package agents

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Sex è il sesso dichiarato, usato per scegliere la formula del metabolismo basale
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Goal è l'obiettivo di peso dichiarato
type Goal string

const (
	GoalMaintain Goal = "maintain"
	GoalLoss     Goal = "loss"
	GoalGain     Goal = "gain"
)

// Fattori di attività e correzione calorica per obiettivo
const (
	ActivitySedentary = 1.2
	ActivityLight     = 1.375
	ActivityModerate  = 1.55
	ActivityHigh      = 1.725

	GoalCalorieOffset = 500.0
)

// BodyParams sono i parametri strutturati estratti dal testo della domanda
type BodyParams struct {
	Sex            Sex
	Age            float64
	Weight         float64 // kg
	Height         float64 // cm
	Goal           Goal
	ActivityFactor float64
}

var (
	ageRe    = regexp.MustCompile(`(\d{1,3})\s*(?:лет|год)`)
	ageKeyRe = regexp.MustCompile(`возраст\s*[:\-]?\s*(\d{1,3})`)

	weightRe    = regexp.MustCompile(`(\d{2,3}(?:[.,]\d+)?)\s*кг`)
	weightKeyRe = regexp.MustCompile(`(?:^|[^\p{L}])вес\s*[:\-]?\s*(\d{2,3}(?:[.,]\d+)?)`)

	heightRe    = regexp.MustCompile(`(\d{2,3})\s*см`)
	heightKeyRe = regexp.MustCompile(`(?:^|[^\p{L}])рост\s*[:\-]?\s*(\d{2,3})`)
)

var (
	lossKeywords = []string{"похуд", "сбросить", "снизить вес", "снижение веса", "сушк"}
	gainKeywords = []string{"набор", "набрать", "масс"}

	activityKeywords = []struct {
		keyword string
		factor  float64
	}{
		{"сидяч", ActivitySedentary},
		{"малоподвиж", ActivitySedentary},
		{"легк", ActivityLight},
		{"лёгк", ActivityLight},
		{"умерен", ActivityModerate},
		{"высок", ActivityHigh},
	}
)

// ExtractBodyParams estrae sesso, età, peso e altezza dalla domanda.
// Il secondo valore è false se uno dei quattro parametri obbligatori manca.
func ExtractBodyParams(query string) (BodyParams, bool) {
	lower := strings.ToLower(query)

	params := BodyParams{
		Sex:            extractSex(lower),
		Age:            firstNumber(lower, ageRe, ageKeyRe),
		Weight:         firstNumber(lower, weightRe, weightKeyRe),
		Height:         firstNumber(lower, heightRe, heightKeyRe),
		Goal:           extractGoal(lower),
		ActivityFactor: ActivityModerate,
	}

	for _, a := range activityKeywords {
		if strings.Contains(lower, a.keyword) {
			params.ActivityFactor = a.factor
			break
		}
	}

	complete := params.Sex != "" && params.Age > 0 && params.Weight > 0 && params.Height > 0
	return params, complete
}

// BMR calcola il metabolismo basale con la formula di Harris-Benedict rivista
func (p BodyParams) BMR() float64 {
	if p.Sex == SexFemale {
		return 447.593 + 9.247*p.Weight + 3.098*p.Height - 4.330*p.Age
	}
	return 88.362 + 13.397*p.Weight + 4.799*p.Height - 5.677*p.Age
}

// DailyCalories applica il fattore di attività e la correzione per l'obiettivo
func (p BodyParams) DailyCalories() float64 {
	factor := p.ActivityFactor
	if factor <= 0 {
		factor = ActivityModerate
	}

	calories := p.BMR() * factor
	switch p.Goal {
	case GoalLoss:
		calories -= GoalCalorieOffset
	case GoalGain:
		calories += GoalCalorieOffset
	}
	return calories
}

// Macros restituisce proteine, carboidrati e grassi in grammi
func (p BodyParams) Macros() (protein, carbs, fats float64) {
	calories := p.DailyCalories()
	return p.Weight * 2, calories * 0.5 / 4, calories * 0.3 / 9
}

// FormatKBJU rende il calcolo come testo per l'utente
func (p BodyParams) FormatKBJU() string {
	protein, carbs, fats := p.Macros()

	goal := "поддержание веса"
	switch p.Goal {
	case GoalLoss:
		goal = "снижение веса (−500 ккал)"
	case GoalGain:
		goal = "набор массы (+500 ккал)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Базовый обмен веществ: %.0f ккал\n", p.BMR())
	fmt.Fprintf(&b, "Коэффициент активности: %g\n", p.ActivityFactor)
	fmt.Fprintf(&b, "Цель: %s\n\n", goal)
	fmt.Fprintf(&b, "Суточная норма калорий: %.0f ккал\n", p.DailyCalories())
	fmt.Fprintf(&b, "Белки: %.0f г\n", protein)
	fmt.Fprintf(&b, "Углеводы: %.0f г\n", carbs)
	fmt.Fprintf(&b, "Жиры: %.0f г", fats)
	return b.String()
}

func extractSex(lower string) Sex {
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for i, w := range words {
		switch {
		case strings.HasPrefix(w, "женщин"), strings.HasPrefix(w, "женск"), w == "жен", w == "female":
			return SexFemale
		case strings.HasPrefix(w, "мужчин"), strings.HasPrefix(w, "мужск"), w == "муж", w == "male":
			return SexMale
		case w == "пол" && i+1 < len(words):
			switch words[i+1] {
			case "м", "муж", "мужской":
				return SexMale
			case "ж", "жен", "женский":
				return SexFemale
			}
		}
	}
	return ""
}

func extractGoal(lower string) Goal {
	for _, kw := range lossKeywords {
		if strings.Contains(lower, kw) {
			return GoalLoss
		}
	}
	for _, kw := range gainKeywords {
		if strings.Contains(lower, kw) {
			return GoalGain
		}
	}
	return GoalMaintain
}

func firstNumber(text string, patterns ...*regexp.Regexp) float64 {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err == nil && v > 0 {
			return v
		}
	}
	return 0
}

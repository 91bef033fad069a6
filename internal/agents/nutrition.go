package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Nomi dei tool del NutritionAgent
const (
	ToolCalculateCalories = "calculate_calories"
	ToolSuggestWorkout    = "suggest_workout"
	ToolAnalyzeNutrition  = "analyze_nutrition"
	ToolCreateMealPlan    = "create_meal_plan"
)

// NutritionDescriptor descrive l'agente per il routing
var NutritionDescriptor = Descriptor{
	Name:        AgentNutrition,
	Description: "Агент для вопросов по питанию, калориям, БЖУ, диетам, продуктам и БАДам.",
	Keywords: []string{
		"питан", "калор", "рацион", "белк", "жир", "углевод", "бад", "протеин",
		"bcaa", "креатин", "продукт", "есть после", "на ночь", "утром", "днем",
	},
}

// toolIntent lega un tool alle keyword che lo attivano
type toolIntent struct {
	name     string
	keywords []string
}

// intents in ordine di dichiarazione: è anche l'ordine dei risultati
var nutritionIntents = []toolIntent{
	{ToolCalculateCalories, []string{"калор", "ккал", "кбжу"}},
	{ToolSuggestWorkout, []string{"тренир", "упражнен", "кардио", "нагрузк"}},
	{ToolAnalyzeNutrition, []string{"белк", "жир", "углевод", "бжу", "продукт", "бад", "протеин", "креатин", "bcaa"}},
	{ToolCreateMealPlan, []string{"меню", "рацион", "план питания"}},
}

type tool func(ctx context.Context, query string) Outcome

// NutritionAgent risponde alle domande di nutrizione scomponendole in tool paralleli.
//
// Politica di combinazione: un solo tool riuscito viene restituito così com'è;
// più tool riusciti passano per una chiamata di sintesi sul modello di qualità,
// e se la sintesi fallisce i risultati grezzi vengono uniti per riga.
type NutritionAgent struct {
	fast        LLM
	quality     LLM
	toolTimeout time.Duration
	tools       map[string]tool
}

// NewNutritionAgent crea un nuovo NutritionAgent
func NewNutritionAgent(fast, quality LLM, toolTimeout time.Duration) *NutritionAgent {
	a := &NutritionAgent{
		fast:        fast,
		quality:     quality,
		toolTimeout: toolTimeout,
	}
	a.tools = map[string]tool{
		ToolCalculateCalories: a.calculateCalories,
		ToolSuggestWorkout:    a.suggestWorkout,
		ToolAnalyzeNutrition:  a.analyzeNutrition,
		ToolCreateMealPlan:    a.createMealPlan,
	}
	return a
}

// Descriptor restituisce i metadati dell'agente
func (a *NutritionAgent) Descriptor() Descriptor {
	return NutritionDescriptor
}

// SelectTools restituisce i tool attivati dalla domanda, in ordine di dichiarazione
func (a *NutritionAgent) SelectTools(query string) []string {
	lower := strings.ToLower(query)

	var selected []string
	for _, intent := range nutritionIntents {
		for _, kw := range intent.keywords {
			if strings.Contains(lower, kw) {
				selected = append(selected, intent.name)
				break
			}
		}
	}
	return selected
}

// Process esegue i tool selezionati in parallelo e combina i risultati
func (a *NutritionAgent) Process(ctx context.Context, query string) Outcome {
	selected := a.SelectTools(query)
	if len(selected) == 0 {
		log.Debug().Str("agent", AgentNutrition).Msg("No tool intent matched, direct answer")
		return askLLM(ctx, a.quality, AgentNutrition, nutritionDirectPrompt(query), "")
	}

	log.Info().
		Str("agent", AgentNutrition).
		Strs("tools", selected).
		Msg("🥗 Running nutrition tools")

	results := fanOut(ctx, len(selected), a.toolTimeout, func(ctx context.Context, i int) Outcome {
		return a.tools[selected[i]](ctx, query)
	})

	for i, r := range results {
		if !r.OK() {
			log.Warn().
				Str("agent", AgentNutrition).
				Str("tool", selected[i]).
				Str("error", r.Reason()).
				Msg("Tool failed")
		}
	}

	valid := successes(results)
	switch len(valid) {
	case 0:
		return Failure("all nutrition tools failed")
	case 1:
		return Success(valid[0])
	}

	synthesis := askLLM(ctx, a.quality, AgentNutrition, synthesisPrompt(query, valid), "")
	if !synthesis.OK() {
		log.Warn().Str("agent", AgentNutrition).Msg("Synthesis failed, joining raw tool outputs")
		return Success(strings.Join(valid, "\n\n"))
	}
	return synthesis
}

// calculateCalories calcola il fabbisogno senza modello quando i parametri sono presenti
func (a *NutritionAgent) calculateCalories(ctx context.Context, query string) Outcome {
	params, ok := ExtractBodyParams(query)
	if ok {
		log.Debug().
			Str("sex", string(params.Sex)).
			Float64("age", params.Age).
			Float64("weight", params.Weight).
			Float64("height", params.Height).
			Str("goal", string(params.Goal)).
			Msg("Calorie parameters extracted")
		return Success(params.FormatKBJU())
	}

	prompt := fmt.Sprintf(`Вопрос пользователя о калориях: %s

Объясни, как рассчитать суточную норму калорий и БЖУ для этого человека
(формула Харриса-Бенедикта, коэффициент активности, поправка на цель).
Если данных не хватает, перечисли, какие параметры нужны: пол, возраст, вес, рост, цель.
Будь краток.`, query)
	return askLLM(ctx, a.quality, ToolCalculateCalories, prompt, "")
}

func (a *NutritionAgent) suggestWorkout(ctx context.Context, query string) Outcome {
	prompt := fmt.Sprintf(`Запрос: %s

Подбери короткую рекомендацию по тренировкам, которая поддержит цель по питанию.
Укажи тип нагрузки, частоту и длительность. Не более 5 пунктов.`, query)
	return askLLM(ctx, a.fast, ToolSuggestWorkout, prompt, "")
}

func (a *NutritionAgent) analyzeNutrition(ctx context.Context, query string) Outcome {
	prompt := fmt.Sprintf(`Запрос: %s

Проанализируй упомянутые продукты, добавки или макронутриенты:
польза, нормы потребления, время приёма. Будь конкретным и кратким.`, query)
	return askLLM(ctx, a.fast, ToolAnalyzeNutrition, prompt, "")
}

func (a *NutritionAgent) createMealPlan(ctx context.Context, query string) Outcome {
	prompt := fmt.Sprintf(`Запрос: %s

Составь примерное меню на один день: завтрак, обед, ужин и перекусы
с ориентировочной калорийностью каждого приёма пищи.`, query)
	return askLLM(ctx, a.fast, ToolCreateMealPlan, prompt, "")
}

func nutritionDirectPrompt(query string) string {
	return fmt.Sprintf(`Ты эксперт по питанию. Ответь на вопрос пользователя кратко и по существу.

Вопрос: %s`, query)
}

func synthesisPrompt(query string, results []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Вопрос пользователя: %s\n\nРезультаты анализа:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	b.WriteString("\nОбъедини результаты в один связный ответ. Сохрани все числа из расчётов без изменений.")
	return b.String()
}

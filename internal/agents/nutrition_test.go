package agents

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/biodoia/nutrillm/internal/providers"
	"github.com/biodoia/nutrillm/internal/providers/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBodyParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		complete bool
		want     BodyParams
	}{
		{
			name:     "full male query",
			query:    "Сколько калорий мне нужно, мужчина, 30 лет, 70кг, 170см, цель похудеть",
			complete: true,
			want:     BodyParams{Sex: SexMale, Age: 30, Weight: 70, Height: 170, Goal: GoalLoss, ActivityFactor: ActivityModerate},
		},
		{
			name:     "profile style",
			query:    "пол: ж, возраст: 25, вес: 58,5, рост: 165, цель: набрать массу, сидячая работа",
			complete: true,
			want:     BodyParams{Sex: SexFemale, Age: 25, Weight: 58.5, Height: 165, Goal: GoalGain, ActivityFactor: ActivitySedentary},
		},
		{
			name:     "female prefix not confused with male",
			query:    "женщина 40 лет 65 кг 160 см",
			complete: true,
			want:     BodyParams{Sex: SexFemale, Age: 40, Weight: 65, Height: 160, Goal: GoalMaintain, ActivityFactor: ActivityModerate},
		},
		{
			name:     "missing height",
			query:    "мужчина 30 лет 80 кг",
			complete: false,
		},
		{
			name:     "no parameters",
			query:    "сколько калорий в яблоке",
			complete: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, complete := ExtractBodyParams(tt.query)
			assert.Equal(t, tt.complete, complete)
			if tt.complete {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestBodyParams_Calculation(t *testing.T) {
	male := BodyParams{Sex: SexMale, Age: 30, Weight: 70, Height: 170, Goal: GoalLoss, ActivityFactor: ActivityModerate}

	assert.InDelta(t, 1671.672, male.BMR(), 0.001)
	assert.InDelta(t, 1671.672*1.55-500, male.DailyCalories(), 0.001)

	protein, carbs, fats := male.Macros()
	assert.Equal(t, 140.0, protein)
	assert.Equal(t, 261.0, math.Round(carbs))
	assert.Equal(t, 70.0, math.Round(fats))

	female := BodyParams{Sex: SexFemale, Age: 30, Weight: 60, Height: 165, Goal: GoalGain, ActivityFactor: ActivitySedentary}
	bmr := 447.593 + 9.247*60 + 3.098*165 - 4.330*30
	assert.InDelta(t, bmr, female.BMR(), 0.001)
	assert.InDelta(t, bmr*1.2+500, female.DailyCalories(), 0.001)
}

// Scenario: calcolo calorie deterministico, nessuna chiamata al modello
func TestNutritionAgent_CaloriesWithoutBackend(t *testing.T) {
	fast := mock.New("fast")
	quality := mock.New("quality")
	agent := NewNutritionAgent(fast, quality, 0)

	query := "Сколько калорий мне нужно, мужчина, 30 лет, 70кг, 170см, цель похудеть"
	assert.Equal(t, []string{ToolCalculateCalories}, agent.SelectTools(query))

	outcome := agent.Process(context.Background(), query)

	require.True(t, outcome.OK(), outcome.Reason())
	assert.Contains(t, outcome.Text(), "2091")
	assert.Equal(t, 0, fast.CallCount())
	assert.Equal(t, 0, quality.CallCount())
}

func TestNutritionAgent_CaloriesFallbackToBackend(t *testing.T) {
	quality := mock.New("quality").QueueAnswers("Нужны пол, возраст, вес и рост")
	agent := NewNutritionAgent(mock.New("fast"), quality, 0)

	outcome := agent.Process(context.Background(), "сколько калорий мне нужно?")

	require.True(t, outcome.OK())
	assert.Equal(t, "Нужны пол, возраст, вес и рост", outcome.Text())
	assert.Equal(t, 1, quality.CallCount())
}

func TestNutritionAgent_SelectTools(t *testing.T) {
	agent := NewNutritionAgent(mock.New("fast"), mock.New("quality"), 0)

	tests := []struct {
		query string
		want  []string
	}{
		{"сколько ккал в рисе", []string{ToolCalculateCalories}},
		{"составь меню и посчитай калории", []string{ToolCalculateCalories, ToolCreateMealPlan}},
		{"сколько белка после тренировки", []string{ToolSuggestWorkout, ToolAnalyzeNutrition}},
		{"что есть на ночь", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, agent.SelectTools(tt.query))
		})
	}
}

func TestNutritionAgent_SynthesizesMultipleTools(t *testing.T) {
	fast := mock.New("fast").SetHandler(func(prompt, _ string) providers.Response {
		switch {
		case strings.Contains(prompt, "Проанализируй"):
			return providers.Success("белок 1.6-2 г/кг", "fast", "m")
		case strings.Contains(prompt, "меню"):
			return providers.Success("завтрак: овсянка", "fast", "m")
		}
		return providers.Success("другое", "fast", "m")
	})
	var synthesisPrompt string
	quality := mock.New("quality").SetHandler(func(prompt, _ string) providers.Response {
		synthesisPrompt = prompt
		return providers.Success("итоговый ответ", "quality", "m")
	})
	agent := NewNutritionAgent(fast, quality, 0)

	outcome := agent.Process(context.Background(), "составь меню с высоким содержанием белка")

	require.True(t, outcome.OK())
	assert.Equal(t, "итоговый ответ", outcome.Text())
	assert.Equal(t, 2, fast.CallCount())
	require.Equal(t, 1, quality.CallCount())

	// i risultati arrivano alla sintesi in ordine di dichiarazione dei tool
	analysis := strings.Index(synthesisPrompt, "белок 1.6-2 г/кг")
	menu := strings.Index(synthesisPrompt, "завтрак: овсянка")
	assert.True(t, analysis >= 0 && menu > analysis)
}

func TestNutritionAgent_SynthesisFailureJoinsResults(t *testing.T) {
	fast := mock.New("fast").SetHandler(func(prompt, _ string) providers.Response {
		if strings.Contains(prompt, "Проанализируй") {
			return providers.Success("анализ", "fast", "m")
		}
		return providers.Success("меню", "fast", "m")
	})
	quality := mock.Failing("quality", "timeout")
	agent := NewNutritionAgent(fast, quality, 0)

	outcome := agent.Process(context.Background(), "меню с белком")

	require.True(t, outcome.OK())
	assert.Equal(t, "анализ\n\nменю", outcome.Text())
}

func TestNutritionAgent_PartialToolFailure(t *testing.T) {
	fast := mock.New("fast").SetHandler(func(prompt, _ string) providers.Response {
		if strings.Contains(prompt, "Проанализируй") {
			return providers.Failure(errors.New("boom"), "fast")
		}
		return providers.Success("меню на день", "fast", "m")
	})
	quality := mock.New("quality")
	agent := NewNutritionAgent(fast, quality, 0)

	outcome := agent.Process(context.Background(), "меню с белком")

	require.True(t, outcome.OK())
	assert.Equal(t, "меню на день", outcome.Text())
	assert.Equal(t, 0, quality.CallCount())
}

func TestNutritionAgent_AllToolsFail(t *testing.T) {
	agent := NewNutritionAgent(mock.Failing("fast", "down"), mock.Failing("quality", "down"), 0)

	outcome := agent.Process(context.Background(), "меню с белком")
	assert.False(t, outcome.OK())
}

func TestNutritionAgent_DirectAnswerWithoutIntent(t *testing.T) {
	fast := mock.New("fast")
	quality := mock.New("quality").QueueAnswers("лучше творог")
	agent := NewNutritionAgent(fast, quality, 0)

	outcome := agent.Process(context.Background(), "что есть на ночь")

	require.True(t, outcome.OK())
	assert.Equal(t, "лучше творог", outcome.Text())
	assert.Equal(t, 0, fast.CallCount())
}

func TestSimpleAgent(t *testing.T) {
	llm := mock.New("llm").QueueAnswers("ответ как есть")
	agent := NewSimpleAgent(llm)

	outcome := agent.Process(context.Background(), "почему болят мышцы?")
	require.True(t, outcome.OK())
	assert.Equal(t, "ответ как есть", outcome.Text())

	calories := agent.Process(context.Background(), "калории: мужчина 30 лет 70 кг 170 см")
	require.True(t, calories.OK())
	assert.Contains(t, calories.Text(), "Суточная норма калорий: 2591")
	assert.Equal(t, 1, llm.CallCount())
}

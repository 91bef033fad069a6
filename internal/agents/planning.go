package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// PlanningDescriptor descrive l'agente per il routing
var PlanningDescriptor = Descriptor{
	Name:        AgentPlanning,
	Description: "Агент для создания планов, программ тренировок, многошаговых целей.",
	Keywords:    []string{"тренир", "программ", "план", "расход энерги", "пропуск", "составь", "распиш", "зал", "функциональн"},
}

// ReportSections sono le sezioni obbligatorie del report finale
var ReportSections = []string{
	"Краткое резюме",
	"Рекомендации",
	"План поддержания результатов",
	"Дальнейшие шаги",
}

var planStepRe = regexp.MustCompile(`^\d+\.\s*(.+)$`)

// PlanningAgent esegue una pipeline in tre fasi: piano, passi paralleli, report
type PlanningAgent struct {
	fast        LLM
	quality     LLM
	stepTimeout time.Duration
}

// NewPlanningAgent crea un nuovo PlanningAgent
func NewPlanningAgent(fast, quality LLM, stepTimeout time.Duration) *PlanningAgent {
	return &PlanningAgent{
		fast:        fast,
		quality:     quality,
		stepTimeout: stepTimeout,
	}
}

// Descriptor restituisce i metadati dell'agente
func (a *PlanningAgent) Descriptor() Descriptor {
	return PlanningDescriptor
}

// Process crea il piano, esegue i passi in parallelo e sintetizza il report
func (a *PlanningAgent) Process(ctx context.Context, goal string) Outcome {
	log.Info().Str("agent", AgentPlanning).Msg("📋 Planning started")

	steps := a.createPlan(ctx, goal)
	log.Info().
		Str("agent", AgentPlanning).
		Int("steps", len(steps)).
		Msg("Plan created")

	results := fanOut(ctx, len(steps), a.stepTimeout, func(ctx context.Context, i int) Outcome {
		return askLLM(ctx, a.fast, AgentPlanning, stepPrompt(goal, steps[i]), "")
	})

	var doneSteps, doneResults []string
	for i, r := range results {
		if !r.OK() {
			log.Warn().
				Str("agent", AgentPlanning).
				Str("step", steps[i]).
				Str("error", r.Reason()).
				Msg("Plan step failed, excluded from report")
			continue
		}
		doneSteps = append(doneSteps, steps[i])
		doneResults = append(doneResults, r.Text())
	}

	report := askLLM(ctx, a.quality, AgentPlanning, reportPrompt(goal, doneResults), "")
	if !report.OK() {
		return report
	}

	return Success(ensureSections(report.Text(), goal, doneSteps, doneResults))
}

// createPlan chiede il piano al modello veloce; un fallimento equivale a zero passi
func (a *PlanningAgent) createPlan(ctx context.Context, goal string) []string {
	prompt := fmt.Sprintf(`Пользователь хочет: %s

Создай пошаговый план для достижения этой цели в контексте фитнеса и питания.
Верни только шаги в виде нумерованного списка.`, goal)

	plan := askLLM(ctx, a.fast, AgentPlanning, prompt, "")
	if !plan.OK() {
		log.Warn().Str("agent", AgentPlanning).Str("error", plan.Reason()).Msg("Plan creation failed, continuing with no steps")
		return nil
	}
	return ParsePlanSteps(plan.Text())
}

// ParsePlanSteps estrae i passi dalle righe che iniziano con "N." togliendo la numerazione
func ParsePlanSteps(text string) []string {
	var steps []string
	for _, line := range strings.Split(text, "\n") {
		m := planStepRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		if step := strings.TrimSpace(m[1]); step != "" {
			steps = append(steps, step)
		}
	}
	return steps
}

func stepPrompt(goal, step string) string {
	return fmt.Sprintf(`Общая цель: %s
Текущий шаг: %s

Дай детальные рекомендации для выполнения этого шага.
Будь максимально конкретным и практичным.`, goal, step)
}

func reportPrompt(goal string, results []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Исходная цель: %s\n\n", goal)

	if len(results) == 0 {
		b.WriteString("Подробные результаты шагов отсутствуют, составь отчёт на основе цели.\n")
	} else {
		b.WriteString("Результаты выполнения шагов:\n")
		for i, r := range results {
			fmt.Fprintf(&b, "Шаг %d: %s\n", i+1, r)
		}
	}

	b.WriteString("\nСоздай финальный отчёт со следующими разделами (используй эти заголовки):\n")
	for i, s := range ReportSections {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\nОтвечай на русском языке.")
	return b.String()
}

// ensureSections aggiunge al report le sezioni obbligatorie mancanti
func ensureSections(report, goal string, steps, results []string) string {
	lower := strings.ToLower(report)

	var b strings.Builder
	b.WriteString(strings.TrimSpace(report))

	for _, section := range ReportSections {
		if strings.Contains(lower, strings.ToLower(section)) {
			continue
		}
		fmt.Fprintf(&b, "\n\n%s:\n%s", section, sectionFallback(section, goal, steps, results))
	}
	return b.String()
}

func sectionFallback(section, goal string, steps, results []string) string {
	switch section {
	case "Краткое резюме":
		return fmt.Sprintf("Цель: %s. Проработано шагов: %d.", goal, len(steps))
	case "Рекомендации":
		if len(results) == 0 {
			return "Двигайтесь к цели постепенно и отслеживайте самочувствие."
		}
		var lines []string
		for _, r := range results {
			first := strings.TrimSpace(strings.SplitN(strings.TrimSpace(r), "\n", 2)[0])
			if first != "" {
				lines = append(lines, "- "+first)
			}
		}
		return strings.Join(lines, "\n")
	case "План поддержания результатов":
		return "Сохраняйте регулярность тренировок и питания, пересматривайте план раз в 4 недели."
	default:
		if len(steps) == 0 {
			return "Уточните цель и исходные данные, чтобы составить подробный план."
		}
		var lines []string
		for i, s := range steps {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, s))
		}
		return strings.Join(lines, "\n")
	}
}

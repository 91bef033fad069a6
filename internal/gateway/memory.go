package gateway

import (
	"errors"

	"github.com/biodoia/nutrillm/internal/memory"
	"github.com/biodoia/nutrillm/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// HistoryResponse è la risposta di GET /history
type HistoryResponse struct {
	Turns []models.ConversationTurn `json:"turns"`
}

// owner legge chat_id e user_id dalla query; almeno uno dei due è obbligatorio
func owner(c fiber.Ctx) (int64, int64, error) {
	chatID := fiber.Query[int64](c, "chat_id")
	userID := fiber.Query[int64](c, "user_id")
	if chatID == 0 && userID == 0 {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "chat_id or user_id required")
	}
	return chatID, userID, nil
}

// handleHistory restituisce gli ultimi scambi salvati, dal più vecchio
func (g *Gateway) handleHistory(c fiber.Ctx) error {
	if g.deps.Memory == nil {
		return fiber.NewError(fiber.StatusNotFound, "memory disabled")
	}
	chatID, userID, err := owner(c)
	if err != nil {
		return err
	}

	n := fiber.Query[int](c, "n", memory.DefaultHistoryTurns)
	turns, err := g.deps.Memory.History(c.Context(), chatID, userID, n)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to load history")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load history")
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}

	return c.JSON(HistoryResponse{Turns: turns})
}

// handleClearMemory cancella la memoria dell'utente per tutti i topic
func (g *Gateway) handleClearMemory(c fiber.Ctx) error {
	if g.deps.Memory == nil {
		return fiber.NewError(fiber.StatusNotFound, "memory disabled")
	}
	chatID, userID, err := owner(c)
	if err != nil {
		return err
	}

	if err := g.deps.Memory.Clear(c.Context(), chatID, userID); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to clear memory")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to clear memory")
	}

	log.Info().Int64("chat_id", chatID).Int64("user_id", userID).Msg("Memory cleared")
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleGetProfile restituisce il profilo salvato
func (g *Gateway) handleGetProfile(c fiber.Ctx) error {
	if g.deps.Profiles == nil {
		return fiber.NewError(fiber.StatusNotFound, "memory disabled")
	}
	chatID, userID, err := owner(c)
	if err != nil {
		return err
	}

	profile, err := g.deps.Profiles.Get(c.Context(), chatID, userID)
	if errors.Is(err, memory.ErrProfileNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "profile not found")
	}
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to load profile")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load profile")
	}

	return c.JSON(profile)
}

// handleSaveProfile inserisce o sostituisce il profilo dell'utente
func (g *Gateway) handleSaveProfile(c fiber.Ctx) error {
	if g.deps.Profiles == nil {
		return fiber.NewError(fiber.StatusNotFound, "memory disabled")
	}

	var profile models.Profile
	if err := c.Bind().Body(&profile); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if profile.ChatID == 0 && profile.UserID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "chat_id or user_id required")
	}
	if err := profile.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := g.deps.Profiles.Save(c.Context(), &profile); err != nil {
		log.Error().Err(err).Int64("chat_id", profile.ChatID).Msg("Failed to save profile")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save profile")
	}

	return c.JSON(profile)
}

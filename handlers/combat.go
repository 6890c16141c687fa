// handlers/combat.go
package handlers

import (
	"log"

	"combat-service/middleware"
	"combat-service/models"
	"combat-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCombatRoutes(app *fiber.App, combatService *services.CombatService) {
	// All duel routes require Gateway auth (global) + user context
	secured := app.Group("/duels", middleware.UserContextMiddleware())

	secured.Post("/challenge", challengeCharacter(combatService))
	secured.Get("/user/history", duelHistory(combatService))
	secured.Get("/:duel_id", duelStatus(combatService))
	secured.Post("/:duel_id/attack", duelAction(combatService, models.ActionAttack))
	secured.Post("/:duel_id/cast", duelAction(combatService, models.ActionCast))
	secured.Post("/:duel_id/heal", duelAction(combatService, models.ActionHeal))
}

func challengeCharacter(s *services.CombatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			ChallengerCharacterID string `json:"challenger_character_id"`
			OpponentCharacterID   string `json:"opponent_character_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
		}
		if req.ChallengerCharacterID == "" || req.OpponentCharacterID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Challenger and opponent character IDs are required"})
		}

		token, _ := c.Locals("user_token").(string)
		duel, err := s.InitiateDuel(c.Context(), req.ChallengerCharacterID, req.OpponentCharacterID, token)
		if err != nil {
			return respondCombatError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"data":    duel,
			"message": "Duel challenge sent",
		})
	}
}

func duelAction(s *services.CombatService, actionType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		duelID := c.Params("duel_id")

		var req struct {
			CharacterID string `json:"character_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
		}
		if req.CharacterID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Character ID is required"})
		}

		token, _ := c.Locals("user_token").(string)

		var result *services.DuelResult
		var err error
		switch actionType {
		case models.ActionAttack:
			result, err = s.PerformAttack(c.Context(), duelID, req.CharacterID, token)
		case models.ActionCast:
			result, err = s.PerformCast(c.Context(), duelID, req.CharacterID, token)
		case models.ActionHeal:
			result, err = s.PerformHeal(c.Context(), duelID, req.CharacterID, token)
		}
		if err != nil {
			return respondCombatError(c, err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data":    result,
		})
	}
}

func duelStatus(s *services.CombatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		duelID := c.Params("duel_id")
		userID, _ := c.Locals("user_id").(string)
		token, _ := c.Locals("user_token").(string)

		duel, err := s.GetDuelByID(c.Context(), duelID, userID, token)
		if err != nil {
			return respondCombatError(c, err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data":    duel,
		})
	}
}

func duelHistory(s *services.CombatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		characterID := c.Query("character_id")
		if characterID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "character_id query parameter is required"})
		}

		duels, err := s.GetUserDuels(c.Context(), characterID)
		if err != nil {
			return respondCombatError(c, err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data":    duels,
			"count":   len(duels),
		})
	}
}

// respondCombatError maps the stable combat error codes to HTTP statuses.
// Untyped errors are internal: logged in full, surfaced as a bare 500.
func respondCombatError(c *fiber.Ctx, err error) error {
	ce := services.AsCombatError(err)
	if ce == nil {
		log.Printf("❌ [COMBAT_API] Internal error on %s: %v", c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "internal error",
		})
	}

	return c.Status(statusForCode(ce.Code)).JSON(fiber.Map{
		"success": false,
		"code":    ce.Code,
		"error":   ce.Message,
	})
}

func statusForCode(code string) int {
	switch code {
	case services.CodeNotFound:
		return fiber.StatusNotFound
	case services.CodeForbidden:
		return fiber.StatusForbidden
	case services.CodeRateLimited:
		return fiber.StatusTooManyRequests
	case services.CodeConflict:
		return fiber.StatusConflict
	case services.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case services.CodeUnavailable:
		return fiber.StatusServiceUnavailable
	default: // INVALID_ARGUMENT, INVALID_STATE
		return fiber.StatusBadRequest
	}
}

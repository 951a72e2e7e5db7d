package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/glitchpeach/gamestudio/app/models"
	"github.com/glitchpeach/gamestudio/app/repository"
	"github.com/glitchpeach/gamestudio/internal/pkg/database"
	"github.com/glitchpeach/gamestudio/internal/pkg/session"
	"github.com/glitchpeach/gamestudio/internal/pkg/usercontext"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a new user account. Every new account starts with
// free credits so users can try game generation right away.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "could not parse request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	db := database.GetDB()
	if _, err := repository.GetGlobalFactory().GetUserRepository().GetByEmail(user.Email); err == nil {
		return jsonError(c, fiber.StatusConflict, "email_taken", "an account with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusInternalServerError, "registration_failed", "could not create account")
	}

	// Account and starting credits are created together or not at all.
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return models.EnsureUserCredits(tx, user.ID, models.StartingCredits)
	})
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "registration_failed", "could not create account")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
		"credits": models.StartingCredits,
	})
}

// HandleLogin authenticates a user and opens a session
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "could not parse request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := repository.GetGlobalFactory().GetUserRepository().GetByEmail(email)
	if err != nil {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_credentials", "email or password is wrong")
	}

	if !user.CheckPassword(req.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_credentials", "email or password is wrong")
	}

	if !user.IsActive() {
		return jsonError(c, fiber.StatusForbidden, "account_disabled", "this account is disabled")
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "session_failed", "could not open session")
	}
	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.Name)
	sess.Set(usercontext.KeyUserEmail, user.Email)
	sess.Set(usercontext.KeyIsAdmin, user.Role == models.ROLE_ADMIN)
	if err := sess.Save(); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "session_failed", "could not save session")
	}

	now := time.Now()
	user.LastLoginAt = &now
	_ = repository.GetGlobalFactory().GetUserRepository().Update(user)

	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// HandleLogout destroys the current session
func HandleLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		_ = sess.Destroy()
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandleMe returns the current session user
func HandleMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":       userCtx.UserID,
			"name":     userCtx.Username,
			"email":    userCtx.Email,
			"is_admin": userCtx.IsAdmin,
		},
	})
}

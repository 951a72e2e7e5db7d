package controllers

import (
	"errors"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glitchpeach/gamestudio/app/models"
	"github.com/glitchpeach/gamestudio/app/repository"
	"github.com/glitchpeach/gamestudio/internal/pkg/credits"
	"github.com/glitchpeach/gamestudio/internal/pkg/env"
	"github.com/glitchpeach/gamestudio/internal/pkg/gamestorage"
	"github.com/glitchpeach/gamestudio/internal/pkg/metrics/counter"
	"github.com/glitchpeach/gamestudio/internal/pkg/security"
	"github.com/glitchpeach/gamestudio/internal/pkg/upload"
	"github.com/glitchpeach/gamestudio/internal/pkg/usercontext"
)

// GenerateGameCost is the credit price of one AI game generation
const GenerateGameCost = 1

var storageClient *gamestorage.Client

// InitializeGameStorage allows injecting a storage client, mainly for tests.
func InitializeGameStorage(client *gamestorage.Client) {
	storageClient = client
}

func getStorageClient() (*gamestorage.Client, error) {
	if storageClient != nil {
		return storageClient, nil
	}
	cfg, err := gamestorage.LoadConfig()
	if err != nil {
		return nil, err
	}
	client, err := gamestorage.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	storageClient = client
	return storageClient, nil
}

// uploadTokenTTL bounds how long an issued upload session stays valid
const uploadTokenTTL = 15 * time.Minute

// HandleCreateUploadSession issues a short-lived signed token for a game
// upload. Requiring the token lets the upload endpoint run without touching
// the session store.
func HandleCreateUploadSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	secret := env.GetEnv("UPLOAD_TOKEN_SECRET", "")
	if secret == "" {
		return jsonError(c, fiber.StatusServiceUnavailable, "uploads_disabled", "upload sessions are not configured")
	}

	token, err := security.GenerateUploadToken(userCtx.UserID, upload.MaxGameFileSize, uploadTokenTTL, secret)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "token_failed", "could not create upload session")
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"token":      token,
		"max_bytes":  upload.MaxGameFileSize,
		"expires_in": int(uploadTokenTTL.Seconds()),
	})
}

// verifyUploadSession enforces the upload token when a secret is configured.
// Returns nil when the token checks out or tokens are disabled.
func verifyUploadSession(c *fiber.Ctx, userID uint) error {
	secret := env.GetEnv("UPLOAD_TOKEN_SECRET", "")
	if secret == "" {
		return nil
	}

	claims, err := security.VerifyUploadToken(strings.TrimSpace(c.Get("X-Upload-Token")), secret)
	if err != nil {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_upload_token", err.Error())
	}
	if claims.UserID != userID {
		return jsonError(c, fiber.StatusForbidden, "token_user_mismatch", "upload token belongs to another user")
	}
	return nil
}

// HandleGameUpload accepts a single-file HTML5 game via multipart upload,
// stores it in object storage and creates the game record.
func HandleGameUpload(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	if err := verifyUploadSession(c, userCtx.UserID); err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "missing_file", "no game file in request")
	}

	if err := upload.ValidateGameSize(fileHeader.Size); err != nil {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "file_too_large", err.Error())
	}

	file, err := fileHeader.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "unreadable_file", "could not read game file")
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, upload.MaxGameFileSize+1))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "unreadable_file", "could not read game file")
	}
	if int64(len(content)) > upload.MaxGameFileSize {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "file_too_large", "game file exceeds the 16 MB upload limit")
	}

	head := content
	if len(head) > 512 {
		head = head[:512]
	}
	if _, err := upload.ValidateGameBySniff(fileHeader.Filename, head); err != nil {
		return jsonError(c, fiber.StatusUnsupportedMediaType, "invalid_file", err.Error())
	}

	title := strings.TrimSpace(c.FormValue("title"))
	description := strings.TrimSpace(c.FormValue("description"))
	category := strings.TrimSpace(c.FormValue("category", "arcade"))
	published := c.FormValue("published", "true") != "false"

	game := &models.Game{
		UUID:        uuid.NewString(),
		UserID:      userCtx.UserID,
		Title:       title,
		Description: description,
		Category:    category,
		FileName:    filepath.Base(fileHeader.Filename),
		FileSize:    int64(len(content)),
		Source:      "upload",
		Published:   published,
	}
	if err := game.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	client, err := getStorageClient()
	if err != nil {
		log.Errorf("[Game] storage unavailable: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "storage_unavailable", "game storage is not available")
	}

	objectKey := client.ObjectKeyFor(userCtx.UserID, game.UUID)
	if _, err := client.UploadGame(c.Context(), objectKey, content); err != nil {
		log.Errorf("[Game] upload to storage failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "storage_failed", "could not store game file")
	}
	game.ContentURL = objectKey

	if err := repository.GetGlobalFactory().GetGameRepository().Create(game); err != nil {
		// Keep storage consistent with the database
		_ = client.DeleteGame(c.Context(), objectKey)
		return jsonError(c, fiber.StatusInternalServerError, "create_failed", "could not create game record")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"game":    game,
	})
}

type generateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	Category    string `json:"category"`
}

// HandleGameGenerate creates a generated game. Generation costs one credit,
// deducted atomically so the balance never goes negative under concurrency.
func HandleGameGenerate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "could not parse request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return jsonError(c, fiber.StatusUnprocessableEntity, "missing_prompt", "a game prompt is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = "Untitled Game"
	}
	if strings.TrimSpace(req.Description) == "" {
		req.Description = req.Prompt
	}
	if strings.TrimSpace(req.Category) == "" {
		req.Category = "arcade"
	}

	if err := getCreditService().DeductCredits(c.Context(), userCtx.UserID, GenerateGameCost); err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			return jsonError(c, fiber.StatusPaymentRequired, "insufficient_credits", "not enough credits, please top up")
		}
		return jsonError(c, fiber.StatusInternalServerError, "deduct_failed", "could not deduct credits")
	}
	invalidateCreditBalanceCache(userCtx.UserID)

	refund := func() {
		if err := getCreditService().AddCredits(c.Context(), userCtx.UserID, GenerateGameCost); err != nil {
			log.Errorf("[Game] refund after failed generation failed for user %d: %v", userCtx.UserID, err)
		}
		invalidateCreditBalanceCache(userCtx.UserID)
	}

	content := renderGeneratedGame(req.Title, req.Prompt)

	game := &models.Game{
		UUID:        uuid.NewString(),
		UserID:      userCtx.UserID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		FileName:    "generated.html",
		FileSize:    int64(len(content)),
		Source:      "generated",
		Published:   true,
	}
	if err := game.Validate(); err != nil {
		refund()
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	client, err := getStorageClient()
	if err != nil {
		refund()
		log.Errorf("[Game] storage unavailable: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "storage_unavailable", "game storage is not available")
	}

	objectKey := client.ObjectKeyFor(userCtx.UserID, game.UUID)
	if _, err := client.UploadGame(c.Context(), objectKey, content); err != nil {
		refund()
		log.Errorf("[Game] upload of generated game failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "storage_failed", "could not store generated game")
	}
	game.ContentURL = objectKey

	if err := repository.GetGlobalFactory().GetGameRepository().Create(game); err != nil {
		_ = client.DeleteGame(c.Context(), objectKey)
		refund()
		return jsonError(c, fiber.StatusInternalServerError, "create_failed", "could not create game record")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"game":    game,
	})
}

// HandleGameFeed returns the public feed of published games, newest first
func HandleGameFeed(c *fiber.Ctx) error {
	offset, limit := parsePagination(c, 20, 100)

	repo := repository.GetGlobalFactory().GetGameRepository()

	if query := strings.TrimSpace(c.Query("q")); query != "" {
		games, err := repo.Search(query)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "feed_failed", "could not load games")
		}
		return c.JSON(fiber.Map{"success": true, "games": games})
	}

	games, err := repo.GetPublished(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "feed_failed", "could not load games")
	}

	return c.JSON(fiber.Map{"success": true, "games": games})
}

// HandleMyGames returns the session user's games including unpublished ones
func HandleMyGames(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	offset, limit := parsePagination(c, 20, 100)
	games, err := repository.GetGlobalFactory().GetGameRepository().GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "list_failed", "could not load your games")
	}

	return c.JSON(fiber.Map{"success": true, "games": games})
}

// HandleGameDetail returns one game by UUID. Unpublished games are only
// visible to their owner.
func HandleGameDetail(c *fiber.Ctx) error {
	game, err := findVisibleGame(c)
	if err != nil {
		return err
	}

	liked := false
	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsLoggedIn {
		liked, _ = repository.GetGlobalFactory().GetGameRepository().IsLikedBy(userCtx.UserID, game.ID)
	}

	return c.JSON(fiber.Map{"success": true, "game": game, "liked": liked})
}

// HandleGameContent streams the stored game HTML so it can be embedded in an
// iframe without exposing the storage backend.
func HandleGameContent(c *fiber.Ctx) error {
	game, err := findVisibleGame(c)
	if err != nil {
		return err
	}

	client, err := getStorageClient()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "storage_unavailable", "game storage is not available")
	}

	content, err := client.DownloadGame(c.Context(), game.ContentURL)
	if err != nil {
		log.Errorf("[Game] content download failed for %s: %v", game.UUID, err)
		return jsonError(c, fiber.StatusNotFound, "content_missing", "game content not found")
	}

	c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	return c.Send(content)
}

// HandleGamePlay counts one play. Increments are buffered in Redis and flushed
// in batches; if Redis is down the database is updated directly.
func HandleGamePlay(c *fiber.Ctx) error {
	game, err := findVisibleGame(c)
	if err != nil {
		return err
	}

	if err := counter.AddGamePlay(game.ID); err != nil {
		if derr := repository.GetGlobalFactory().GetGameRepository().IncrementPlayCount(game.ID); derr != nil {
			return jsonError(c, fiber.StatusInternalServerError, "play_failed", "could not count play")
		}
	}

	return c.JSON(fiber.Map{"success": true})
}

// HandleGameLike toggles the session user's like on a game
func HandleGameLike(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	game, err := findVisibleGame(c)
	if err != nil {
		return err
	}

	liked, err := repository.GetGlobalFactory().GetGameRepository().ToggleLike(userCtx.UserID, game.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "like_failed", "could not toggle like")
	}

	return c.JSON(fiber.Map{"success": true, "liked": liked})
}

// HandleGameDelete removes a game owned by the session user
func HandleGameDelete(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	repo := repository.GetGlobalFactory().GetGameRepository()
	game, err := repo.GetByUUID(c.Params("uuid"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "game not found")
	}
	if game.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "you do not own this game")
	}

	if err := repo.Delete(game.ID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "delete_failed", "could not delete game")
	}

	if client, cerr := getStorageClient(); cerr == nil && game.ContentURL != "" {
		_ = client.DeleteGame(c.Context(), game.ContentURL)
	}

	return c.JSON(fiber.Map{"success": true})
}

// findVisibleGame loads the game from the uuid route param and enforces
// publish visibility. Writes the error response itself on failure.
func findVisibleGame(c *fiber.Ctx) (*models.Game, error) {
	gameUUID := strings.TrimSpace(c.Params("uuid"))
	if gameUUID == "" {
		return nil, jsonError(c, fiber.StatusBadRequest, "missing_uuid", "game uuid is required")
	}

	game, err := repository.GetGlobalFactory().GetGameRepository().GetByUUID(gameUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, jsonError(c, fiber.StatusNotFound, "not_found", "game not found")
		}
		return nil, jsonError(c, fiber.StatusInternalServerError, "lookup_failed", "could not load game")
	}

	if !game.Published {
		userCtx := usercontext.GetUserContext(c)
		if !userCtx.IsLoggedIn || (game.UserID != userCtx.UserID && !userCtx.IsAdmin) {
			return nil, jsonError(c, fiber.StatusNotFound, "not_found", "game not found")
		}
	}

	return game, nil
}

// renderGeneratedGame produces the playable HTML shell for a generated game.
// The actual generation backend is swappable; the shell embeds the prompt so
// the result is self-describing.
func renderGeneratedGame(title, prompt string) []byte {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<h1>%s</h1>
<p>%s</p>
<canvas id="game" width="800" height="600"></canvas>
<script src="/static/js/generated-runtime.js"></script>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(title), html.EscapeString(prompt))
	return []byte(page)
}

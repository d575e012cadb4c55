package api

import (
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/schoolwatch-hk/schoolwatch/internal/common/database"
	"github.com/schoolwatch-hk/schoolwatch/internal/extractor"
	"github.com/schoolwatch-hk/schoolwatch/internal/monitor"
)

// MonitorAPI exposes the on-demand trigger surface: start a run, inspect
// the latest run, list schools flagged for review and extract events from
// one announcement.
type MonitorAPI struct {
	monitor   *monitor.Monitor
	store     *database.Store
	extractor *extractor.Service
	logger    *zap.SugaredLogger
}

func NewMonitorAPI(m *monitor.Monitor, store *database.Store, ex *extractor.Service, logger *zap.SugaredLogger) *MonitorAPI {
	return &MonitorAPI{monitor: m, store: store, extractor: ex, logger: logger}
}

func (api *MonitorAPI) RegisterRoutes(app *fiber.App) {
	app.Post("/monitoring/run", api.runHandler)
	app.Get("/monitoring/runs/latest", api.latestRunHandler)
	app.Get("/schools/review", api.reviewHandler)
	app.Post("/announcements/:id/extract", api.extractHandler)
}

func (api *MonitorAPI) runHandler(c *fiber.Ctx) error {
	var body struct {
		LimitSchools        int    `json:"limit_schools"`
		LimitPagesPerSchool int    `json:"limit_pages_per_school"`
		SchoolQuery         string `json:"school_query"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body: " + err.Error(),
			})
		}
	}

	summary, err := api.monitor.RunOnce(c.Context(), monitor.RunOptions{
		LimitSchools:        body.LimitSchools,
		LimitPagesPerSchool: body.LimitPagesPerSchool,
		SchoolQuery:         body.SchoolQuery,
	})
	if err != nil {
		api.logger.Errorw("monitoring run failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "monitoring run failed: " + err.Error(),
		})
	}
	return c.JSON(summary)
}

func (api *MonitorAPI) latestRunHandler(c *fiber.Ctx) error {
	run, err := api.store.LatestMonitoringRun(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if run == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no monitoring runs yet",
		})
	}
	return c.JSON(run)
}

func (api *MonitorAPI) reviewHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	schools, err := api.store.SchoolsNeedingReview(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"count":   len(schools),
		"schools": schools,
	})
}

func (api *MonitorAPI) extractHandler(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid announcement id",
		})
	}

	res, err := api.extractor.ExtractFromAnnouncement(c.Context(), api.store, id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"provider":        res.Provider,
		"request_id":      res.RequestID,
		"extracted_count": len(res.Events),
	})
}

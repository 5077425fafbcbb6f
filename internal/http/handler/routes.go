package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snapapi/internal/http/middleware"
	"snapapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// apiLimit guards the /api group; pass nil to leave it unlimited.
func RegisterRoutes(app *fiber.App, svc service.ImageService, gatherer prometheus.Gatherer, apiLimit fiber.Handler) {
	app.Get("/health", HealthCheck(svc))
	app.Get("/healthz", LivenessProbe())
	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	if apiLimit == nil {
		apiLimit = middleware.Noop()
	}
	api := app.Group("/api", apiLimit)
	api.Get("/images", ListImages(svc))
	api.Get("/image/:id", GetImage(svc))
	api.Get("/data/:id", GetImageData(svc))
}

// HealthCheck godoc
// @Summary Store health
// @Description Pings the record store.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe reports that the process is serving.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListImages godoc
// @Summary Recent images
// @Description Returns up to 9 visible captures, newest first, without image data.
// @Tags images
// @Produce json
// @Success 200 {array} model.Summary
// @Failure 503 {object} errorPayload
// @Router /api/images [get]
func ListImages(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.List(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(items)
	}
}

// GetImage godoc
// @Summary Image bytes
// @Description Returns the stored image with its MIME type.
// @Tags images
// @Produce image/jpeg
// @Produce plain
// @Param id path string true "Image ID (capture unix seconds)"
// @Success 200 {file} binary
// @Failure 404 {string} string "Image {id} not found."
// @Failure 503 {object} errorPayload
// @Router /api/image/{id} [get]
func GetImage(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		rec, err := svc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				c.Type("txt", "utf-8")
				return c.Status(fiber.StatusNotFound).SendString("Image " + id + " not found.")
			}
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentType, rec.MimeType)
		return c.Status(fiber.StatusOK).Send(rec.ImageData)
	}
}

// GetImageData godoc
// @Summary Image metadata
// @Description Returns the summary of one capture.
// @Tags images
// @Produce json
// @Param id path string true "Image ID (capture unix seconds)"
// @Success 200 {object} model.Summary
// @Failure 404 {object} errorPayload
// @Failure 503 {object} errorPayload
// @Router /api/data/{id} [get]
func GetImageData(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := svc.Data(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(sum)
	}
}

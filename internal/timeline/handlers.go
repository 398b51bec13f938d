package timeline

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/:sessionID", func(c *fiber.Ctx) error {
		events, err := svc.Events(c.Context(), c.Params("sessionID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(events)
	})

	r.Get("/:sessionID/track", func(c *fiber.Ctx) error {
		points, err := svc.Track(c.Context(), c.Params("sessionID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(points)
	})

	r.Post("/:sessionID/regenerate", authMiddleware, func(c *fiber.Ctx) error {
		summary, err := svc.Regenerate(c.Context(), c.Params("sessionID"))
		if err != nil {
			if errors.Is(err, ErrBusy) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summary)
	})
}

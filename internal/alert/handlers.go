package alert

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/open", func(c *fiber.Ctx) error {
		alerts, err := svc.Open(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(alerts)
	})

	r.Post("/:id/ack", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Acknowledge(c.Context(), c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"acknowledged": true})
	})
}

package session

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			EmployeeID string    `json:"employee_id"`
			StartTime  time.Time `json:"start_time"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.EmployeeID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "employee_id required")
		}
		sess, err := svc.Start(c.Context(), req.EmployeeID, req.StartTime)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	})

	r.Post("/:id/stop", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			EndTime time.Time `json:"end_time"`
		}
		_ = c.BodyParser(&req)
		sess, err := svc.Stop(c.Context(), c.Params("id"), req.EndTime)
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return c.JSON(sess)
	})

	r.Post("/:id/cancel", authMiddleware, func(c *fiber.Ctx) error {
		sess, err := svc.Cancel(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return c.JSON(sess)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		sess, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(sess)
	})
}

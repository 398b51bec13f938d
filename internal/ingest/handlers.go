package ingest

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req RawPoint
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.EmployeeID == "" || req.SessionID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "employee_id and session_id required")
		}
		res, err := svc.Ingest(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if !res.Accepted && !res.Duplicate {
			// invalid fix: dropped and counted, not an error for the caller
			return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	r.Post("/batch", authMiddleware, func(c *fiber.Ctx) error {
		var req []RawPoint
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		results, err := svc.IngestBatch(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(results)
	})

	r.Get("/:sessionID/live", func(c *fiber.Ctx) error {
		status, err := svc.Live(c.Context(), c.Params("sessionID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(status)
	})
}

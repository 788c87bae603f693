package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/hydromis/wfengine/pkg/engine"
	"github.com/hydromis/wfengine/pkg/persistence"
	"github.com/hydromis/wfengine/pkg/services"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func unprocessable(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(422).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	var actionErr *engine.ActionError

	switch {
	case services.IsValidationError(err), errors.Is(err, persistence.ErrInvalidID):
		return badRequest(c, err.Error())

	case services.IsInvalidTrigger(err):
		return unprocessable(c, "invalid_trigger", err.Error())

	case errors.Is(err, engine.ErrGuardFailed):
		return unprocessable(c, "guard_failed", err.Error())

	case services.IsConflictError(err):
		return conflict(c, err.Error())

	case persistence.IsVersionConflict(err):
		return conflict(c, "instance was modified concurrently, reload and retry")

	case persistence.IsDefinitionAlreadyExists(err):
		return conflict(c, "a definition with this key already exists")

	case persistence.IsDefinitionNotFound(err):
		return notFound(c, "definition not found")

	case persistence.IsInstanceNotFound(err):
		return notFound(c, "instance not found")

	case errors.As(err, &actionErr):
		// Enter actions run after the commit.
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("action_failed").
			WithDetail(actionDetail(actionErr))

		return c.Status(fiber.StatusInternalServerError).JSON(problem)

	default:
		return internalError(c, err)
	}
}

func actionDetail(err *engine.ActionError) string {
	if err.Committed() {
		return "transition committed but " + err.Error()
	}

	return "transition aborted: " + err.Error()
}

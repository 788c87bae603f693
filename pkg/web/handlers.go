// Package web provides HTTP handlers and REST API endpoints for workflow definitions and instances.
package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/hydromis/wfengine/pkg/compiler"
	"github.com/hydromis/wfengine/pkg/models"
	"github.com/hydromis/wfengine/pkg/services"
)

type APIHandlers struct {
	definitionService *services.Definition
	instanceService   *services.Instance
	validator         *validator.Validate
}

func NewAPIHandlers(
	definitionService *services.Definition,
	instanceService *services.Instance,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		definitionService: definitionService,
		instanceService:   instanceService,
		validator:         validator,
	}
}

// Routes registers the definition and instance endpoints on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	d := router.Group("/definitions")
	d.Get("/", h.GetDefinitions)
	d.Post("/", h.CreateDefinition)
	d.Get("/:id", h.GetDefinition)
	d.Patch("/:id", h.UpdateDefinition)
	d.Post("/:id/activate", h.ActivateDefinition)
	d.Post("/:id/deactivate", h.DeactivateDefinition)

	i := router.Group("/instances")
	i.Post("/", h.CreateInstance)
	i.Get("/:id", h.GetInstance)
	i.Post("/:id/trigger", h.TriggerInstance)
	i.Get("/:id/transitions", h.GetTransitions)
}

func tenantID(c fiber.Ctx) string {
	return strings.TrimSpace(c.Get(TenantHeader))
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.definitionService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "wfengine API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "wfengine API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetDefinitions(c fiber.Ctx) error {
	tenant := tenantID(c)
	if tenant == "" {
		return badRequest(c, TenantHeader+" header is required")
	}

	definitions, err := h.definitionService.List(c.Context(), tenant)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definitions)
}

func (h *APIHandlers) CreateDefinition(c fiber.Ctx) error {
	tenant := tenantID(c)
	if tenant == "" {
		return badRequest(c, TenantHeader+" header is required")
	}

	body := c.Body()

	if err := compiler.ValidateDocument(body); err != nil {
		return badRequest(c, err.Error())
	}

	var spec models.Spec
	if err := json.Unmarshal(body, &spec); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.definitionService.Create(c.Context(), tenant, &spec)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	tenant := tenantID(c)
	if tenant == "" {
		return badRequest(c, TenantHeader+" header is required")
	}

	definition, err := h.definitionService.FetchByID(c.Context(), tenant, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) UpdateDefinition(c fiber.Ctx) error {
	tenant := tenantID(c)
	if tenant == "" {
		return badRequest(c, TenantHeader+" header is required")
	}

	var req UpdateDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.Spec != nil {
		if err := compiler.ValidateValue(req.Spec); err != nil {
			return badRequest(c, err.Error())
		}
	}

	updated, err := h.definitionService.Update(c.Context(), tenant, c.Params("id"), services.DefinitionUpdate{
		Name:   req.Name,
		Spec:   req.Spec,
		Active: req.Active,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) ActivateDefinition(c fiber.Ctx) error {
	tenant := tenantID(c)
	if tenant == "" {
		return badRequest(c, TenantHeader+" header is required")
	}

	definition, err := h.definitionService.Activate(c.Context(), tenant, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) DeactivateDefinition(c fiber.Ctx) error {
	tenant := tenantID(c)
	if tenant == "" {
		return badRequest(c, TenantHeader+" header is required")
	}

	definition, err := h.definitionService.Deactivate(c.Context(), tenant, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) CreateInstance(c fiber.Ctx) error {
	tenant := tenantID(c)
	if tenant == "" {
		return badRequest(c, TenantHeader+" header is required")
	}

	var req CreateInstanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.instanceService.Create(c.Context(), tenant, services.CreateInstanceRequest{
		DefinitionKey: req.DefinitionKey,
		EntityType:    req.EntityType,
		EntityID:      req.EntityID,
		Context:       req.Context,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.respondInstance(c, fiber.StatusCreated, instance)
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	tenant := tenantID(c)
	if tenant == "" {
		return badRequest(c, TenantHeader+" header is required")
	}

	instance, err := h.instanceService.FetchByID(c.Context(), tenant, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.respondInstance(c, fiber.StatusOK, instance)
}

func (h *APIHandlers) TriggerInstance(c fiber.Ctx) error {
	tenant := tenantID(c)
	if tenant == "" {
		return badRequest(c, TenantHeader+" header is required")
	}

	var req TriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.instanceService.Trigger(c.Context(), tenant, c.Params("id"), services.TriggerRequest{
		Trigger: req.Trigger,
		Payload: req.Payload,
		ActorID: req.ActorID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.respondInstance(c, fiber.StatusOK, instance)
}

func (h *APIHandlers) GetTransitions(c fiber.Ctx) error {
	tenant := tenantID(c)
	if tenant == "" {
		return badRequest(c, TenantHeader+" header is required")
	}

	transitions, err := h.instanceService.History(c.Context(), tenant, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(transitions)
}

func (h *APIHandlers) respondInstance(c fiber.Ctx, status int, instance *models.WorkflowInstance) error {
	triggers, err := h.instanceService.AvailableTriggers(c.Context(), instance)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(status).JSON(NewInstanceResponse(instance, triggers))
}

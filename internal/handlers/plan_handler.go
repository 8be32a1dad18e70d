package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-cuotas/internal/middleware"
	"github.com/sjperalta/fintera-cuotas/internal/schedule"
	"github.com/sjperalta/fintera-cuotas/internal/services"
)

type PlanHandler struct {
	planService *services.PlanService
}

func NewPlanHandler(planService *services.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

// CreatePlanRequest accepts both {"plan": {...}} and a flat body
type CreatePlanRequest struct {
	AgreementID string `json:"agreement_id" binding:"required"`
	Total       int64  `json:"total" binding:"gte=0"`
	Count       int    `json:"count"`
	AnchorDate  string `json:"anchor_date"`
}

// EditInstallmentRequest carries the fields to change; omitted fields stay as they are
type EditInstallmentRequest struct {
	Value   *int64  `json:"value"`
	DueDate *string `json:"due_date"`
}

// @Summary Build Plan
// @Description Build an installment plan for an agreement. Total defaults to the product price.
// @Tags Plans
// @Accept json
// @Produce json
// @Param request body CreatePlanRequest true "Plan Data"
// @Success 201 {object} services.PlanView
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Security BearerAuth
// @Router /plans [post]
func (h *PlanHandler) Create(c *gin.Context) {
	var req CreatePlanRequest
	if err := BindNestedOrFlat(c, "plan", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Datos inválidos: " + err.Error()})
		return
	}
	req.AgreementID = strings.TrimSpace(req.AgreementID)
	if req.AgreementID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agreement_id es requerido"})
		return
	}

	input := services.BuildPlanInput{
		AgreementID: req.AgreementID,
		Total:       req.Total,
		Count:       req.Count,
	}
	if req.AnchorDate != "" {
		anchor, err := time.Parse(time.DateOnly, req.AnchorDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "anchor_date debe tener formato AAAA-MM-DD"})
			return
		}
		input.AnchorDate = &anchor
	}

	view, err := h.planService.BuildPlan(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// @Summary Get Plan
// @Description Get a plan with the edit capabilities of each installment
// @Tags Plans
// @Produce json
// @Param plan_id path string true "Plan ID"
// @Success 200 {object} services.PlanView
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /plans/{plan_id} [get]
func (h *PlanHandler) Show(c *gin.Context) {
	view, err := h.planService.GetPlan(c.Param("plan_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// @Summary Edit Installment
// @Description Change the value and/or due date of one installment and redistribute the rest
// @Tags Plans
// @Accept json
// @Produce json
// @Param plan_id path string true "Plan ID"
// @Param sequence path int true "Installment sequence (1-based)"
// @Param request body EditInstallmentRequest true "Changes"
// @Success 200 {object} services.PlanView
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]interface{}
// @Security BearerAuth
// @Router /plans/{plan_id}/installments/{sequence} [patch]
func (h *PlanHandler) EditInstallment(c *gin.Context) {
	sequence, err := strconv.Atoi(c.Param("sequence"))
	if err != nil || sequence < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Número de cuota inválido"})
		return
	}

	var req EditInstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Datos inválidos: " + err.Error()})
		return
	}

	edit := schedule.EditRequest{Value: req.Value}
	if req.DueDate != nil {
		due, err := time.Parse(time.DateOnly, *req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("due_date inválida: %s", *req.DueDate)})
			return
		}
		edit.DueDate = &due
	}

	view, err := h.planService.EditInstallment(c.Param("plan_id"), sequence-1, edit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// @Summary Commit Plan
// @Description Persist the plan's installments and start a reconciliation pass
// @Tags Plans
// @Produce json
// @Param plan_id path string true "Plan ID"
// @Success 200 {object} services.CommitResult
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /plans/{plan_id}/commit [post]
func (h *PlanHandler) Commit(c *gin.Context) {
	result, err := h.planService.CommitPlan(c.Request.Context(), c.Param("plan_id"), middleware.AuditMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Discard Plan
// @Description Forget a plan that is no longer needed
// @Tags Plans
// @Param plan_id path string true "Plan ID"
// @Success 204
// @Security BearerAuth
// @Router /plans/{plan_id} [delete]
func (h *PlanHandler) Discard(c *gin.Context) {
	h.planService.DiscardPlan(c.Param("plan_id"))
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-cuotas/internal/middleware"
	"github.com/sjperalta/fintera-cuotas/internal/models"
	"github.com/sjperalta/fintera-cuotas/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type InstallmentHandler struct {
	reconService  *services.ReconciliationService
	exportService *services.ExportService
}

func NewInstallmentHandler(reconService *services.ReconciliationService, exportService *services.ExportService) *InstallmentHandler {
	return &InstallmentHandler{reconService: reconService, exportService: exportService}
}

// @Summary List Installments
// @Description List the persisted installments of an agreement. Installments past due are marked overdue on the way.
// @Tags Installments
// @Produce json
// @Param agreement_id path string true "Agreement ID"
// @Success 200 {object} services.ReconcileSummary
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /agreements/{agreement_id}/installments [get]
func (h *InstallmentHandler) Index(c *gin.Context) {
	summary, err := h.reconService.Summary(c.Request.Context(), c.Param("agreement_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Reconcile Agreement
// @Description Match the agreement's installments against reported payments and resolve them with the settlement authority
// @Tags Installments
// @Produce json
// @Param agreement_id path string true "Agreement ID"
// @Success 200 {object} services.ReconcileSummary
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Security BearerAuth
// @Router /agreements/{agreement_id}/reconcile [post]
func (h *InstallmentHandler) Reconcile(c *gin.Context) {
	summary, err := h.reconService.Reconcile(c.Request.Context(), c.Param("agreement_id"), middleware.AuditMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Export Installments
// @Description Download the agreement's installments as xlsx (default) or csv
// @Tags Installments
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Param agreement_id path string true "Agreement ID"
// @Param format query string false "xlsx or csv" default(xlsx)
// @Success 200 {file} file
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /agreements/{agreement_id}/installments/export [get]
func (h *InstallmentHandler) Export(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "xlsx"))
	if format != "xlsx" && format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato no soportado"})
		return
	}

	summary, err := h.reconService.Summary(c.Request.Context(), c.Param("agreement_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var (
		data        []byte
		filename    string
		contentType string
	)
	if format == "csv" {
		data, filename, err = h.exportService.ExportCSV(summary)
		contentType = "text/csv"
	} else {
		data, filename, err = h.exportService.ExportXLSX(summary)
		contentType = xlsxContentType
	}
	if err != nil {
		respondError(c, err)
		return
	}

	h.reconService.AuditExport(c.Request.Context(), middleware.AuditMeta(c), summary.AgreementID, format)

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, data)
}

// @Summary Sweep Overdue
// @Description Mark every persisted installment past its due date as overdue
// @Tags Installments
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /installments/sweep [post]
func (h *InstallmentHandler) Sweep(c *gin.Context) {
	n, err := h.reconService.SweepOverdue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promoted": n, "state": models.PaymentStateOverdue})
}

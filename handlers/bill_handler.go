package handlers

import (
	"context"
	"log"
	"net/http"

	"legiscribe-backend/models"
	"legiscribe-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxUploadSize bounds the encoded upload payload at 10 MiB
const maxUploadSize = 10 << 20

// BillHandler handles HTTP requests for bill processing
type BillHandler struct {
	billService *service.BillService
}

// NewBillHandler creates a new bill handler
func NewBillHandler(billService *service.BillService) *BillHandler {
	return &BillHandler{billService: billService}
}

// ProcessBillRequest represents the request body for bill processing
type ProcessBillRequest struct {
	Document        models.UploadedDocument  `json:"document" binding:"required"`
	AmendedDocument *models.UploadedDocument `json:"amendedDocument,omitempty"`
}

// failureCode maps a pipeline failure to a stable client error code
func failureCode(kind service.FailureKind) string {
	switch kind {
	case service.FailureMalformedUpload:
		return "MALFORMED_UPLOAD"
	case service.FailureUnsupportedFileType:
		return "UNSUPPORTED_FILE_TYPE"
	case service.FailureModelOutputInvalid:
		return "MODEL_OUTPUT_INVALID"
	case service.FailureServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case service.FailureRateLimited:
		return "RATE_LIMITED"
	default:
		return "PROCESSING_FAILED"
	}
}

// failureStatus maps a pipeline failure to an HTTP status
func failureStatus(kind service.FailureKind) int {
	switch kind {
	case service.FailureMalformedUpload, service.FailureUnsupportedFileType:
		return http.StatusBadRequest
	case service.FailureModelOutputInvalid:
		return http.StatusBadGateway
	case service.FailureServiceUnavailable:
		return http.StatusServiceUnavailable
	case service.FailureRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// validateUpload rejects oversized or unsupported uploads before any
// decoding happens. Returns nil when the document is acceptable.
func validateUpload(doc models.UploadedDocument) *service.Failure {
	if len(doc.Content) > maxUploadSize {
		return &service.Failure{
			Kind:    service.FailureMalformedUpload,
			Message: "The uploaded file is too large. The maximum supported size is 10 MB.",
		}
	}
	if !models.AllowedMimeTypes[doc.MimeType] {
		return &service.Failure{
			Kind:    service.FailureUnsupportedFileType,
			Message: "This file type is not supported. Please upload a TXT, PDF, DOC, or DOCX file.",
		}
	}
	return nil
}

// ProcessBill handles POST /api/bills/process. The response body always
// carries a bill field and an error field, exactly one of them null.
func (h *BillHandler) ProcessBill(c *gin.Context) {
	var req ProcessBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"bill": nil,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "The request body could not be parsed.",
			},
		})
		return
	}

	if failure := h.checkUploads(req); failure != nil {
		c.JSON(failureStatus(failure.Kind), gin.H{
			"bill": nil,
			"error": gin.H{
				"code":    failureCode(failure.Kind),
				"message": failure.Message,
			},
		})
		return
	}

	result, err := h.billService.ProcessBill(c.Request.Context(), service.ProcessBillRequest{
		Document:        req.Document,
		AmendedDocument: req.AmendedDocument,
	})
	if err != nil {
		failure := service.AsFailure(err)
		log.Printf("Bill processing failed for %s: %v", req.Document.FileName, failure)
		c.JSON(failureStatus(failure.Kind), gin.H{
			"bill": nil,
			"error": gin.H{
				"code":    failureCode(failure.Kind),
				"message": failure.Message,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bill":  result.Bill,
		"error": nil,
	})
}

func (h *BillHandler) checkUploads(req ProcessBillRequest) *service.Failure {
	if failure := validateUpload(req.Document); failure != nil {
		return failure
	}
	if req.AmendedDocument != nil {
		if failure := validateUpload(*req.AmendedDocument); failure != nil {
			return failure
		}
	}
	return nil
}

// SubmitBill handles POST /api/bills. It queues a background analysis job
// and returns immediately with the job for polling.
func (h *BillHandler) SubmitBill(c *gin.Context) {
	var req ProcessBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	if failure := h.checkUploads(req); failure != nil {
		c.JSON(failureStatus(failure.Kind), gin.H{
			"success": false,
			"error": gin.H{
				"code":    failureCode(failure.Kind),
				"message": failure.Message,
			},
		})
		return
	}

	result, err := h.billService.CreateJob(c.Request.Context(), service.CreateJobRequest{
		Document:        req.Document,
		AmendedDocument: req.AmendedDocument,
	})
	if err != nil {
		failure := service.AsFailure(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "JOB_CREATE_FAILED",
				"message": failure.Message,
			},
		})
		return
	}

	// The pipeline outlives the request, so it gets a fresh context
	go h.billService.ProcessJob(context.Background(), result.Job.ID, service.ProcessBillRequest{
		Document:        req.Document,
		AmendedDocument: req.AmendedDocument,
	})

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data":    result.Job,
	})
}

// GetJob handles GET /api/jobs/:id
func (h *BillHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_JOB_ID",
				"message": "Invalid job id format",
			},
		})
		return
	}

	job, err := h.billService.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "Analysis job not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    job,
	})
}

// GetBill handles GET /api/bills/:id
func (h *BillHandler) GetBill(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_BILL_ID",
				"message": "Invalid bill id format",
			},
		})
		return
	}

	bill, err := h.billService.GetBill(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "BILL_NOT_FOUND",
				"message": "Bill not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    bill,
	})
}

// ListBills handles GET /api/bills
func (h *BillHandler) ListBills(c *gin.Context) {
	bills, err := h.billService.ListBills(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "LIST_FAILED",
				"message": "Failed to list bills",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    bills,
	})
}

// ExplainClauseRequest represents the request body for clause explanation
type ExplainClauseRequest struct {
	ClauseText string `json:"clauseText" binding:"required"`
	BillText   string `json:"billText" binding:"required"`
}

// ExplainClause handles POST /api/clauses/explain
func (h *BillHandler) ExplainClause(c *gin.Context) {
	var req ExplainClauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.billService.ExplainClause(c.Request.Context(), service.ExplainClauseRequest{
		ClauseText: req.ClauseText,
		BillText:   req.BillText,
	})
	if err != nil {
		failure := service.AsFailure(err)
		c.JSON(failureStatus(failure.Kind), gin.H{
			"success": false,
			"error": gin.H{
				"code":    failureCode(failure.Kind),
				"message": failure.Message,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"explanation": result.Explanation,
		},
	})
}

package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextlevelcode/meterbill/pkg/db/pagination"
)

// maxReceiptBytes caps an uploaded payment proof at 10 MiB.
const maxReceiptBytes = 10 << 20

type issueBillingRequest struct {
	DueDate int `json:"due_date" binding:"required"`
}

func (s *Server) IssueBilling(c *gin.Context) {
	clientID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req issueBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	billing, err := s.billingSvc.Issue(c.Request.Context(), clientID, req.DueDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, billing)
}

func (s *Server) InvoiceClient(c *gin.Context) {
	clientID, ok := pathID(c, "id")
	if !ok {
		return
	}

	billing, err := s.billingSvc.Invoice(c.Request.Context(), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, billing)
}

func (s *Server) ListClientBillings(c *gin.Context) {
	clientID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	billings, info, err := s.billingSvc.ListByClient(c.Request.Context(), clientID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"billings": billings, "page_info": info})
}

func (s *Server) ValidateHash(c *gin.Context) {
	valid, err := s.billingSvc.ValidateHash(c.Request.Context(), c.Param("hash"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// SubmitReceipt accepts a multipart payment proof from the client
// payment page. The pay hash in the URL is the only credential.
func (s *Server) SubmitReceipt(c *gin.Context) {
	fileHeader, err := c.FormFile("receipt")
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if fileHeader.Size > maxReceiptBytes {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxReceiptBytes))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	billing, err := s.billingSvc.SubmitReceipt(c.Request.Context(), c.Param("hash"), fileHeader.Filename, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, billing)
}

func (s *Server) VerifyPayment(c *gin.Context) {
	billing, err := s.billingSvc.VerifyPayment(c.Request.Context(), c.Param("hash"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, billing)
}

func (s *Server) DownloadReceipt(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	path, err := s.billingSvc.ReceiptPath(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.FileAttachment(path, fmt.Sprintf("receipt-%s%s", id, extOf(path)))
}

func (s *Server) DownloadReceiptPDF(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	doc, err := s.billingSvc.ReceiptPDF(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", doc)
}

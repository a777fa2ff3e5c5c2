package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/nextlevelcode/meterbill/internal/ledger/domain"
)

// IngestUsage records one priced inference call for the authenticated
// client. The client identity always comes from the API key, never
// from the body.
func (s *Server) IngestUsage(c *gin.Context) {
	client := authenticatedClient(c)
	if client == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req ledgerdomain.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.ClientID = client.ID

	record, err := s.ledgerSvc.RecordUsage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) IngestUpload(c *gin.Context) {
	client := authenticatedClient(c)
	if client == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req ledgerdomain.RecordUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.ClientID = client.ID

	record, err := s.ledgerSvc.RecordUpload(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) GetOwnSummary(c *gin.Context) {
	client := authenticatedClient(c)
	if client == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	summary, err := s.ledgerSvc.Aggregate(c.Request.Context(), client.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/nextlevelcode/meterbill/internal/catalog/domain"
)

func (s *Server) CreateModel(c *gin.Context) {
	var req catalogdomain.CreateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	model, err := s.catalogSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model)
}

func (s *Server) GetModel(c *gin.Context) {
	model, err := s.catalogSvc.GetByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, model)
}

func (s *Server) ListModels(c *gin.Context) {
	models, err := s.catalogSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

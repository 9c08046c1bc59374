package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	gallery "github.com/bitmark-inc/picture-gallery"
)

func (s *GalleryServer) AddSpace(c *gin.Context) {
	var req gallery.SpaceAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	id, err := s.spaces.CreateSpace(c, currentUser(c), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id": id,
	})
}

func (s *GalleryServer) ResizeSpace(c *gin.Context) {
	var req gallery.SpaceResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	space, err := s.spaces.ResizeSpace(c, currentUser(c), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, space)
}

func (s *GalleryServer) DeleteSpace(c *gin.Context) {
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	if err := s.pictures.DeleteSpace(c, currentUser(c), req.ID); err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": 1,
	})
}

func (s *GalleryServer) GetMySpace(c *gin.Context) {
	space, err := s.store.GetSpaceByOwner(c, currentUser(c).ID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, space)
}

func (s *GalleryServer) ListSpaceLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gallery.SpaceLevels())
}

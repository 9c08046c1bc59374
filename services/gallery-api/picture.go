package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	gallery "github.com/bitmark-inc/picture-gallery"
	"github.com/bitmark-inc/picture-gallery/ingest"
	"github.com/bitmark-inc/picture-gallery/traceutils"
)

type idRequest struct {
	ID int64 `json:"id" binding:"required"`
}

func (s *GalleryServer) UploadPicture(c *gin.Context) {
	traceutils.SetHandlerTag(c, "UploadPicture")

	var req gallery.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "file is required", err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "unable to read file", err)
		return
	}
	defer file.Close()

	asset, err := s.pictures.UploadPicture(c, currentUser(c), ingest.NewLocalSource(fileHeader.Filename, fileHeader.Size, file), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

func (s *GalleryServer) UploadPictureByURL(c *gin.Context) {
	traceutils.SetHandlerTag(c, "UploadPictureByURL")

	var req gallery.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	asset, err := s.pictures.UploadPicture(c, currentUser(c), ingest.NewURLSource(req.FileURL, s.fetchClient), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

func (s *GalleryServer) UploadPictureBatch(c *gin.Context) {
	traceutils.SetHandlerTag(c, "UploadPictureBatch")

	var req gallery.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	uploaded, err := s.batch.AcquireBatch(c, currentUser(c), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uploaded": uploaded,
	})
}

func (s *GalleryServer) DeletePicture(c *gin.Context) {
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	if err := s.pictures.DeletePicture(c, currentUser(c), req.ID); err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": 1,
	})
}

func (s *GalleryServer) EditPicture(c *gin.Context) {
	var req gallery.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	asset, err := s.pictures.EditPicture(c, currentUser(c), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

func (s *GalleryServer) UpdatePicture(c *gin.Context) {
	var req gallery.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	asset, err := s.pictures.UpdatePicture(c, currentUser(c), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

func (s *GalleryServer) ReviewPicture(c *gin.Context) {
	var req gallery.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	asset, err := s.pictures.ReviewPicture(c, currentUser(c), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

func (s *GalleryServer) GetPicture(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusBadRequest, "invalid picture id", err)
		return
	}

	asset, err := s.pictures.GetPicture(c, currentUser(c), id)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, asset)
}

// ListPictures serves the cached page bytes as they are.
func (s *GalleryServer) ListPictures(c *gin.Context) {
	traceutils.SetHandlerTag(c, "ListPictures")

	var q gallery.AssetQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	page, err := s.pictures.ListPictures(c, currentUser(c), q)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", page)
}

func (s *GalleryServer) ListAllPictures(c *gin.Context) {
	var q gallery.AssetQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid parameters", err)
		return
	}

	page, err := s.pictures.ListAllPictures(c, currentUser(c), q)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *GalleryServer) ListTagCategories(c *gin.Context) {
	presets, err := gallery.LoadTagCategories()
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "unable to load tag presets", err)
		return
	}

	c.JSON(http.StatusOK, presets)
}

func (s *GalleryServer) InvalidateCache(c *gin.Context) {
	if err := s.pictures.InvalidateCache(c, currentUser(c)); err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": 1,
	})
}

package main

import (
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *GalleryServer) SetupRoute() {
	s.route.Use(gin.Recovery())
	s.route.Use(sentrygin.New(sentrygin.Options{
		Repanic: true,
	}))

	s.route.Use(cors.New(cors.Config{
		AllowOrigins:     s.corsOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))

	if s.metricsHandler != nil {
		s.route.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	s.route.Use(s.authenticate)

	picture := s.route.Group("/picture")
	picture.GET("/get", s.GetPicture)
	picture.POST("/list/page/vo", s.ListPictures)
	picture.GET("/tag_category", s.ListTagCategories)

	picture.Use(requireUser)
	picture.POST("/upload", s.UploadPicture)
	picture.POST("/upload/url", s.UploadPictureByURL)
	picture.POST("/upload/batch", s.UploadPictureBatch)
	picture.POST("/delete", s.DeletePicture)
	picture.POST("/edit", s.EditPicture)
	picture.POST("/update", s.UpdatePicture)
	picture.POST("/review", s.ReviewPicture)
	picture.POST("/list/page", s.ListAllPictures)
	picture.POST("/cache/invalidate", s.InvalidateCache)

	space := s.route.Group("/space")
	space.GET("/level/list", s.ListSpaceLevels)

	space.Use(requireUser)
	space.POST("/add", s.AddSpace)
	space.POST("/resize", s.ResizeSpace)
	space.POST("/delete", s.DeleteSpace)
	space.GET("/mine", s.GetMySpace)
}

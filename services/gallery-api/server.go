package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	gallery "github.com/bitmark-inc/picture-gallery"
)

type GalleryServer struct {
	jwtSecret   []byte
	corsOrigins []string
	route       *gin.Engine

	metricsHandler http.Handler

	store       gallery.Store
	pictures    *gallery.PictureService
	spaces      *gallery.SpaceGate
	batch       *gallery.BatchAcquisition
	fetchClient *http.Client
}

func NewGalleryServer(store gallery.Store,
	pictures *gallery.PictureService,
	spaces *gallery.SpaceGate,
	batch *gallery.BatchAcquisition,
	fetchClient *http.Client,
	jwtSecret string,
	corsOrigins []string) *GalleryServer {
	r := gin.New()

	return &GalleryServer{
		jwtSecret:   []byte(jwtSecret),
		corsOrigins: corsOrigins,
		route:       r,

		store:       store,
		pictures:    pictures,
		spaces:      spaces,
		batch:       batch,
		fetchClient: fetchClient,
	}
}

// ExposeMetrics serves h on GET /metrics. A nil handler disables the route.
func (s *GalleryServer) ExposeMetrics(h http.Handler) {
	s.metricsHandler = h
}

func (s *GalleryServer) Run(port string) error {
	return s.route.Run(port)
}

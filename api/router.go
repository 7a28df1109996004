package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"podlight/config"
	"podlight/job"
	"podlight/metrics"
	"podlight/pipeline"
)

func SetupRouter(store *job.Store, runner *pipeline.Runner, cfg *config.Config, log *logrus.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(log), gin.Recovery())
	h := NewHandler(store, runner, cfg, log, m)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	apiGroup.Use(AuthMiddleware(cfg))
	{
		apiGroup.POST("/upload", h.handleUpload)
		apiGroup.POST("/process", h.handleProcess)
		apiGroup.GET("/process/:jobId/start", h.handleStartProcess)
		apiGroup.GET("/status/:jobId", h.handleStatus)
		apiGroup.GET("/jobs", h.handleListJobs)
	}

	// Artifact downloads stay outside auth: the paths embed unguessable
	// job ids and the polling client fetches them directly.
	r.GET("/outputs/:jobId/:filename", h.handleDownload)

	return r
}

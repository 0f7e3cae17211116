// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// *****************************************************************************************************//
// Package main is the entry point for the brand compliance audit server.
//
// This application sets up and runs a web server using the Gin framework. It
// provides a REST API for auditing advertiser video against the brand
// guideline corpus and for uploading video into the monitored input bucket.
// The server is instrumented with OpenTelemetry for logging, tracing, and
// metrics.
//
// The main function initializes the application's configuration, sets up
// logging and telemetry, and initializes the application state, including
// clients for external services. It defines API routes for running audits,
// uploading files, and health checks, and starts the background Pub/Sub
// listener that audits bucket uploads.
//
// Functions:
//   - main: The main entry point of the application. It sets up the server,
//     configures routes, initializes services, and handles graceful shutdown.
//   - AuditRouter: Sets up the API route that runs a synchronous audit of a
//     video reference and returns the verdict.
//   - FileUpload: Configures the API endpoint for multipart file uploads,
//     storing them in the input bucket and returning signed playback URLs.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-brand-guardian/internal/core/model"
	"github.com/jaycherian/gcp-go-brand-guardian/internal/telemetry"
)

// auditRequestTimeout bounds a synchronous audit, covering media staging, the
// indexing job, and the adjudication call.
const auditRequestTimeout = 30 * time.Minute

// main is the primary entry point for the application.
// It orchestrates the setup of logging, telemetry, configuration, cloud
// services, the web server, API routes, and background listeners, and handles
// graceful shutdown of the server upon receiving an interrupt signal.
func main() {
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	// Root context for the application; cancelling it stops the listeners.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := GetConfig()

	_, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	InitState(ctx)
	slog.Info("Initialized State")

	r := gin.Default()

	// Trace incoming requests; each request gets its own span.
	r.Use(otelgin.Middleware("brand-guardian-server"))

	// cors.Default() is permissive, suitable for development.
	r.Use(cors.Default())

	apiV1 := r.Group("/api/v1")
	{
		AuditRouter(apiV1)
		FileUpload(apiV1)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
		// Audits poll a long-running external job, so the write timeout has
		// to cover a full synchronous run.
		ReadTimeout:  20 * time.Second,
		WriteTimeout: auditRequestTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready on port 8080")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}

	log.Println("Server exiting")
}

// auditRequest is the JSON body for POST /api/v1/audits.
type auditRequest struct {
	VideoURL string `json:"video_url" binding:"required"`
}

// AuditRouter sets up the API route for running audits.
//
// This function defines the following endpoint:
//   - POST /audits: Runs a complete audit of the referenced video and returns
//     the verdict as a flat response body. A completed audit with a FAIL
//     verdict is still a successful request; only unclassified breakage in
//     the pipeline yields a 5xx.
func AuditRouter(r *gin.RouterGroup) {
	audits := r.Group("/audits")
	{
		audits.POST("", func(c *gin.Context) {
			var req auditRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "video_url is required"})
				return
			}

			// Correlation ids: one for the request, one short id that travels
			// with the video through the indexing service.
			sessionID := uuid.NewString()
			videoID := "vid_" + uuid.NewString()[:8]

			runCtx, runCancel := context.WithTimeout(c.Request.Context(), auditRequestTimeout)
			defer runCancel()

			auditState, err := state.auditPipeline.Run(runCtx, req.VideoURL, videoID)
			if err != nil {
				slog.ErrorContext(runCtx, "audit pipeline failed",
					"session_id", sessionID,
					"video_id", videoID,
					"error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"session_id": sessionID,
					"error":      fmt.Sprintf("workflow execution failed: %v", err),
				})
				return
			}

			c.JSON(http.StatusOK, model.NewAuditResponse(sessionID, auditState))
		})
	}
}

// FileUpload sets up the route for handling file uploads.
//
// This function configures a POST endpoint at "/uploads" that accepts
// multipart/form-data. Each file sent under the "files" form field is streamed
// into the monitored input bucket, which in turn triggers an audit through the
// bucket's Pub/Sub notification. The response carries the stored gs://
// reference and a time-limited signed playback URL per file.
func FileUpload(r *gin.RouterGroup) {
	upload := r.Group("/uploads")
	{
		upload.POST("", func(c *gin.Context) {
			form, err := c.MultipartForm()
			if err != nil {
				c.String(http.StatusBadRequest, "get form err: %s", err.Error())
				return
			}
			files := form.File["files"]

			stored := make([]gin.H, 0, len(files))
			for _, file := range files {
				src, err := file.Open()
				if err != nil {
					c.String(http.StatusBadRequest, "open file err: %s", err.Error())
					return
				}

				contentType := file.Header.Get("Content-Type")
				if contentType == "" {
					contentType = "video/mp4"
				}

				reference, err := state.uploadService.Store(c, file.Filename, contentType, src)
				_ = src.Close()
				if err != nil {
					slog.ErrorContext(c, "failed to store upload", "file", file.Filename, "error", err)
					c.String(http.StatusInternalServerError, "write file to bucket err: %s", err.Error())
					return
				}

				// Playback URL valid for 15 minutes.
				signedURL, err := state.uploadService.GenerateSignedURL(c, file.Filename, 15*time.Minute)
				if err != nil {
					slog.ErrorContext(c, "failed to sign playback URL", "file", file.Filename, "error", err)
					c.String(http.StatusInternalServerError, "sign url err: %s", err.Error())
					return
				}

				stored = append(stored, gin.H{
					"name":      file.Filename,
					"reference": reference,
					"url":       signedURL,
				})
			}

			c.JSON(http.StatusOK, gin.H{"files": stored})
		})
	}
}

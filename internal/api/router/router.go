// Package router maps HTTP routes onto the business handlers and applies
// the API-key middleware.
package router

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"resume-match-go/internal/api/handler"
	"resume-match-go/internal/config"
	"resume-match-go/internal/pipeline"
	"resume-match-go/internal/scoring"
)

// RegisterRoutes wires every route. The health endpoint stays outside the
// authenticated group so probes need no credentials.
func RegisterRoutes(h *server.Hertz, cfg *config.Config, uploadHandler *handler.UploadHandler, matchHandler *handler.MatchHandler) {
	h.GET("/api/v1/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")
	if len(cfg.Server.APIKeys) > 0 {
		api.Use(apiKeyMiddleware(cfg.Server.APIKeys))
	}

	api.POST("/resumes/upload", func(c context.Context, ctx *app.RequestContext) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "file field is required"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to open uploaded file"})
			return
		}
		defer file.Close()

		fileBytes, err := io.ReadAll(file)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to read uploaded file"})
			return
		}

		metadata := map[string]string{}
		if source := ctx.PostForm("source"); source != "" {
			metadata["source"] = source
		}
		if candidate := ctx.PostForm("candidate_name"); candidate != "" {
			metadata["candidate_name"] = candidate
		}

		resp, err := uploadHandler.HandleUpload(c, fileBytes, fileHeader.Filename, metadata)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.POST("/match/rank", func(c context.Context, ctx *app.RequestContext) {
		var req handler.RankRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
			return
		}

		resp, err := matchHandler.HandleRank(c, req)
		if err != nil {
			status := consts.StatusInternalServerError
			if errors.Is(err, pipeline.ErrEmptyJobDescription) {
				status = consts.StatusBadRequest
			}
			ctx.JSON(status, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.POST("/match/score", func(c context.Context, ctx *app.RequestContext) {
		var req handler.ScoreRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
			return
		}

		resp, err := matchHandler.HandleScore(c, req)
		if err != nil {
			status := consts.StatusInternalServerError
			switch {
			case errors.Is(err, pipeline.ErrEmptyJobDescription):
				status = consts.StatusBadRequest
			case errors.Is(err, handler.ErrResumeNotIndexed):
				status = consts.StatusNotFound
			case errors.Is(err, scoring.ErrDimensionMismatch):
				status = consts.StatusConflict
			}
			ctx.JSON(status, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/stats", func(c context.Context, ctx *app.RequestContext) {
		resp, err := matchHandler.HandleStats(c)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})
}

// apiKeyMiddleware validates the bearer token against the configured keys.
func apiKeyMiddleware(keys []string) app.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}

	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			_, ok := allowed[key]
			return ok, nil
		}),
	)
}

package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ellogroup/ello-golang-orgrouter/dispatch"
)

type Executor interface {
	Execute(ctx context.Context, p dispatch.Parameters, workflowCtx dispatch.WorkflowContext) ([][]dispatch.Record, error)
}

// ExecuteRequest is the body accepted by POST /execute
type ExecuteRequest struct {
	Parameters dispatch.Parameters      `json:"parameters"`
	Context    dispatch.WorkflowContext `json:"context"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewRouter exposes the dispatcher over http
func NewRouter(exec Executor, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("Server")

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/execute", func(c *gin.Context) {
		var req ExecuteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
			return
		}
		if req.Parameters.Action == "" {
			req.Parameters.Action = dispatch.ActionFetchSalesforceData
		}

		out, err := exec.Execute(c.Request.Context(), req.Parameters, req.Context)
		if err != nil {
			status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
			var appErr dispatch.AppError
			if errors.As(err, &appErr) {
				status, code = appErr.HTTPStatus(), appErr.Code()
			}
			log.Warn("execute failed", zap.String("code", code), zap.Error(err))
			c.JSON(status, errorResponse{Error: err.Error(), Code: code})
			return
		}
		c.JSON(http.StatusOK, out)
	})

	return r
}

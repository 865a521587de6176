package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "hyperfocus/internal/errors"
	"hyperfocus/internal/logging"
	"hyperfocus/internal/toolengine"
	"hyperfocus/internal/toolregistry"
	"hyperfocus/internal/tools/ports"
	"hyperfocus/internal/utils/id"
)

// Supported protocol methods.
const (
	methodList = "tools/list"
	methodCall = "tools/call"
)

// toolRequest is the JSON envelope accepted on the tools endpoint.
type toolRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToolsHandler translates the external tool-calling protocol into registry
// and engine operations.
type ToolsHandler struct {
	registry *toolregistry.Registry
	engine   *toolengine.Engine
	auth     Authenticator
	logger   logging.Logger
}

// NewToolsHandler builds the protocol adapter handler.
func NewToolsHandler(registry *toolregistry.Registry, engine *toolengine.Engine, auth Authenticator, logger logging.Logger) *ToolsHandler {
	return &ToolsHandler{
		registry: registry,
		engine:   engine,
		auth:     auth,
		logger:   logging.OrNop(logger),
	}
}

// Handle serves POST /api/tools.
func (h *ToolsHandler) Handle(c *gin.Context) {
	var req toolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{
			Code:    "invalid_request",
			Message: "request body must be a JSON object with a method field",
		}})
		return
	}

	switch req.Method {
	case methodList:
		// Discovery needs no auth; the catalog is what the LLM runtime
		// plans against.
		c.JSON(http.StatusOK, gin.H{"tools": h.registry.ListMetadata()})
	case methodCall:
		h.handleCall(c, req)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{
			Code:    "invalid_method",
			Message: "unsupported method " + req.Method + "; supported methods are tools/list and tools/call",
		}})
	}
}

func (h *ToolsHandler) handleCall(c *gin.Context, req toolRequest) {
	start := time.Now()

	identity, err := h.authenticate(c)
	if err != nil {
		// Unauthorized callers never reach a handler.
		h.writeError(c, req.Params.Name, err, start)
		return
	}

	tool, err := h.registry.Resolve(req.Params.Name)
	if err != nil {
		h.writeError(c, req.Params.Name, err, start)
		return
	}

	for _, scope := range tool.Meta.Auth.Scopes {
		if !identity.HasScope(scope) {
			h.writeError(c, req.Params.Name,
				apperrors.NewUnauthorized("missing required scope "+scope), start)
			return
		}
	}

	ec := ports.ExecutionContext{
		UserID:     identity.UserID,
		RequestID:  id.NewRequestID(),
		ToolName:   req.Params.Name,
		Parameters: req.Params.Arguments,
		CreatedAt:  start,
		Metadata: map[string]any{
			"remote_addr": c.ClientIP(),
		},
	}

	result := h.engine.Execute(c.Request.Context(), ec)
	if result.Error != nil {
		h.writeError(c, req.Params.Name, result.Error, start)
		return
	}

	h.logger.Info("tools/call %s completed in %s (cached=%v)", req.Params.Name, time.Since(start), result.Cached)
	c.JSON(http.StatusOK, gin.H{
		"result":  result.Content,
		"call_id": result.CallID,
		"cached":  result.Cached,
	})
}

func (h *ToolsHandler) authenticate(c *gin.Context) (Identity, error) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		return Identity{}, apperrors.NewUnauthorized("authorization required")
	}
	return h.auth.Authenticate(c.Request.Context(), token)
}

// writeError maps an internal error onto the protocol-level status and
// body. Raw causes stay in the server log, never in the response.
func (h *ToolsHandler) writeError(c *gin.Context, toolName string, err error, start time.Time) {
	status := apperrors.HTTPStatus(err)
	kind := apperrors.KindOf(err)
	h.logger.Warn("tools/call %s failed after %s: [%s] %v", toolName, time.Since(start), kind, err)
	c.JSON(status, gin.H{"error": errorBody{
		Code:    kind.String(),
		Message: err.Error(),
	}})
}

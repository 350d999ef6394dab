package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"timelens/internal/models/request_models"
	"timelens/internal/services"
	"timelens/pkg/middleware"
	"timelens/pkg/utils"
)

// MaxUploadBytes caps the uploaded photo.
const MaxUploadBytes = 10 << 20

type TransformController struct {
	transformService services.TransformServiceInterface
}

func NewTransformController(transformService services.TransformServiceInterface) *TransformController {
	return &TransformController{
		transformService: transformService,
	}
}

// Transform godoc
// @Summary Transform a photo into an era
// @Description Upload a photo with an era theme or a custom prompt. Consumes one unit of the daily quota on success.
// @Tags Transform
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Source photo"
// @Param eraTheme formData string false "Era theme key (e.g. medieval, cyberpunk)"
// @Param customPrompt formData string false "Free-text prompt, overrides the theme"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 429 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Security BearerAuth
// @Router /transform [post]
func (t *TransformController) Transform(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+1<<20)

	var req request_models.TransformRequest
	if err := c.ShouldBind(&req); err != nil || req.Image == nil {
		utils.RespondError(c, http.StatusBadRequest, "image is required")
		return
	}
	if req.Image.Size > MaxUploadBytes {
		utils.RespondError(c, http.StatusRequestEntityTooLarge, "Image exceeds the 10MB limit")
		return
	}

	f, err := req.Image.Open()
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Unable to read image")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Unable to read image")
		return
	}

	res, err := t.transformService.Transform(c.Request.Context(), services.TransformInput{
		UserID:       c.GetString(middleware.ContextUserID),
		ImageName:    req.Image.Filename,
		Image:        data,
		DeclaredMIME: req.Image.Header.Get("Content-Type"),
		EraTheme:     req.EraTheme,
		CustomPrompt: req.CustomPrompt,
	})
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, res, "Transformation completed")
}

// ListTransformations godoc
// @Summary List my transformations
// @Tags Transform
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /transformations [get]
func (t *TransformController) ListTransformations(c *gin.Context) {
	var q request_models.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	page, err := t.transformService.ListResults(c.Request.Context(), c.GetString(middleware.ContextUserID), q.Page, q.PageSize)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, page, "Transformations fetched successfully")
}

// ListThemes godoc
// @Summary Available era themes
// @Tags Transform
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /themes [get]
func (t *TransformController) ListThemes(c *gin.Context) {
	utils.RespondSuccess(c, utils.AvailableThemes(), "Themes fetched successfully")
}

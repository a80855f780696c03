package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pomelo/internal/model"
	"pomelo/internal/service"
)

// maxAudioUploadBytes 音频上传大小上限
const maxAudioUploadBytes = 32 << 20 // 32MB

// TranscriptionHandler 语音识别处理器
type TranscriptionHandler struct {
	transcription *service.TranscriptionService
}

// NewTranscriptionHandler 创建语音识别处理器
func NewTranscriptionHandler(transcription *service.TranscriptionService) *TranscriptionHandler {
	return &TranscriptionHandler{transcription: transcription}
}

// Transcribe 语音转文字接口
// multipart/form-data 上传，file 为音频文件，language 可选
func (h *TranscriptionHandler) Transcribe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAudioUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusBadRequest, &model.ErrorResponse{
				Code:    CodeInvalidBody,
				Message: "Audio file too large (limit 32MB)",
			})
			return
		}
		c.JSON(http.StatusBadRequest, &model.ErrorResponse{
			Code:    CodeMissingField,
			Message: "Audio file is required",
			Detail:  err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := h.transcription.Transcribe(c.Request.Context(), fileHeader.Filename, audio, c.PostForm("language"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

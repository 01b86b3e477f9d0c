package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/BorisDmv/blog-platform/internal/ai"
	"github.com/BorisDmv/blog-platform/internal/models"
	"github.com/BorisDmv/blog-platform/internal/respond"
)

type AIHandler struct {
	gen  ai.Generator
	errs respond.Errors
}

func NewAIHandler(gen ai.Generator, errs respond.Errors) *AIHandler {
	return &AIHandler{gen: gen, errs: errs}
}

// Generate passes the prompt through to the generator and returns its text
// unchanged.
func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		h.errs.Write(w, r, fmt.Errorf("%w: prompt is required", models.ErrValidation))
		return
	}

	text, err := h.gen.Generate(r.Context(), req.Prompt)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, models.GenerateResponse{Text: text})
}

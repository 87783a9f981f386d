package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"doerly/internal/ai"
)

const maxImageBytes = 10 << 20

// registerAI wires the model-backed endpoints. The multipart upload is a
// plain chi handler; huma handles the JSON one. Inference failures degrade
// to an error payload instead of failing the request.
func registerAI(api huma.API, router chi.Router, basePath string, client *ai.Client) {
	router.Post(path.Join(basePath, "ai/analyze-image"), func(w http.ResponseWriter, r *http.Request) {
		if _, authErr := userIDFromContext(r.Context()); authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "multipart form required", nil))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "file field required", nil))
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "could not read upload", nil))
			return
		}
		resp := AnalysisResponse{}
		analysis, err := client.AnalyzeImage(r.Context(), data, header.Header.Get("Content-Type"))
		if err != nil {
			resp.Error = err.Error()
			resp.Analysis = "Unable to analyze image"
		} else {
			resp.Analysis = analysis
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	huma.Register(api, huma.Operation{
		OperationID: "extract-task",
		Method:      http.MethodPost,
		Path:        "/ai/extract-task",
		Summary:     "Extract a task suggestion from free text",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body ExtractTaskRequest `json:"body"`
	}) (*struct {
		Body TaskSuggestionResponse `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if input.Body.Text == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "text is required", nil)
		}
		out := &struct {
			Body TaskSuggestionResponse `json:"body"`
		}{}
		suggestion, err := client.ExtractTask(ctx, input.Body.Text)
		if err != nil {
			out.Body.Error = err.Error()
			return out, nil
		}
		out.Body.TaskSuggestion = suggestion
		return out, nil
	})
}

package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ImageTool generates, edits, or creates variations of images through an
// OpenAI-compatible image API, dispatching on mode the way the model's
// generate_image tool call requests.
type ImageTool struct {
	model   string
	client  openai.Client
}

// NewImageTool builds an image tool against apiBase (empty uses the
// provider's default) with the given model and API key.
func NewImageTool(model, apiKey, apiBase string) *ImageTool {
	if model == "" {
		model = "dall-e-3"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	return &ImageTool{model: model, client: openai.NewClient(opts...)}
}

func (t *ImageTool) Name() string { return "generate_image" }
func (t *ImageTool) Description() string {
	return "Generate images from scratch, edit existing images, or create variations. For edit/variation mode, provide a base_image (base64 or URL)."
}

func (t *ImageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"mode": map[string]interface{}{
				"type": "string", "enum": []string{"generate", "edit", "variation"},
				"description": "Mode: 'generate' (from scratch), 'edit' (edit existing), or 'variation' (create variations)",
				"default":     "generate",
			},
			"prompt": map[string]interface{}{
				"type":        "string",
				"description": "Text description of the image to generate or edit (required for generate and edit modes)",
			},
			"base_image": map[string]interface{}{
				"type":        "string",
				"description": "Base image for edit/variation mode: base64 data URI or image URL (required for edit and variation modes)",
			},
			"size": map[string]interface{}{
				"type": "string", "enum": []string{"1024x1024", "1792x1024", "1024x1792"},
				"default": "1024x1024",
			},
			"n": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 4, "default": 1},
		},
		"required": []string{},
	}
}

func (t *ImageTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	mode, _ := args["mode"].(string)
	if mode == "" {
		mode = "generate"
	}
	prompt, _ := args["prompt"].(string)
	baseImage, _ := args["base_image"].(string)
	size, _ := args["size"].(string)
	if size == "" {
		size = "1024x1024"
	}
	n := 1
	if v, ok := args["n"].(float64); ok && v >= 1 {
		n = int(v)
	}

	if (mode == "edit" || mode == "variation") && baseImage == "" {
		return ErrorResult(fmt.Sprintf("Error: base_image is required for %s mode", mode))
	}
	if (mode == "generate" || mode == "edit") && prompt == "" {
		return ErrorResult(fmt.Sprintf("Error: prompt is required for %s mode", mode))
	}

	var images []string
	var err error

	switch mode {
	case "generate":
		images, err = t.generate(ctx, prompt, size, n)
	case "edit":
		images, err = t.edit(ctx, prompt, baseImage, size, n)
	case "variation":
		images, err = t.variation(ctx, baseImage, size, n)
	default:
		return ErrorResult(fmt.Sprintf("Error: Unknown mode '%s'", mode))
	}

	if err != nil {
		return ErrorResult(fmt.Sprintf("Error generating image: %v", err)).WithError(err)
	}
	if len(images) == 0 {
		return ErrorResult("Error: No images generated")
	}

	var lines []string
	for _, img := range images {
		if strings.HasPrefix(img, "data:") {
			lines = append(lines, img)
		} else {
			lines = append(lines, "data:image/png;base64,"+img)
		}
	}
	return &ToolResult{ForLLM: strings.Join(lines, "\n\n")}
}

func (t *ImageTool) generate(ctx context.Context, prompt, size string, n int) ([]string, error) {
	resp, err := t.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:  openai.ImageModel(t.model),
		Prompt: prompt,
		N:      openai.Int(int64(n)),
		Size:   openai.ImageGenerateParamsSize(size),
	})
	if err != nil {
		return nil, err
	}
	return extractImages(resp)
}

func (t *ImageTool) edit(ctx context.Context, prompt, baseImage, size string, n int) ([]string, error) {
	file, err := imageDataToFile(ctx, baseImage)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Images.Edit(ctx, openai.ImageEditParams{
		Image:  openai.ImageEditParamsImageUnion{OfFile: file},
		Prompt: prompt,
		Model:  openai.ImageModel(t.model),
		N:      openai.Int(int64(n)),
		Size:   openai.ImageEditParamsSize(size),
	})
	if err != nil {
		return nil, err
	}
	return extractImages(resp)
}

func (t *ImageTool) variation(ctx context.Context, baseImage, size string, n int) ([]string, error) {
	file, err := imageDataToFile(ctx, baseImage)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Images.NewVariation(ctx, openai.ImageNewVariationParams{
		Image: file,
		Model: openai.ImageModel(t.model),
		N:     openai.Int(int64(n)),
		Size:  openai.ImageNewVariationParamsSize(size),
	})
	if err != nil {
		return nil, err
	}
	return extractImages(resp)
}

func extractImages(resp *openai.ImagesResponse) ([]string, error) {
	var out []string
	for _, data := range resp.Data {
		if data.B64JSON != "" {
			out = append(out, data.B64JSON)
			continue
		}
		if data.URL != "" {
			b64, err := downloadAsBase64(data.URL)
			if err != nil {
				return nil, err
			}
			out = append(out, b64)
		}
	}
	return out, nil
}

func imageDataToFile(ctx context.Context, imageStr string) (io.Reader, error) {
	if strings.HasPrefix(imageStr, "data:") {
		parts := strings.SplitN(imageStr, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed data URI")
		}
		data, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return nil, err
		}
		return strings.NewReader(string(data)), nil
	}
	if strings.HasPrefix(imageStr, "http://") || strings.HasPrefix(imageStr, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageStr, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return strings.NewReader(string(data)), nil
	}
	data, err := base64.StdEncoding.DecodeString(imageStr)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(string(data)), nil
}

func downloadAsBase64(url string) (string, error) {
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

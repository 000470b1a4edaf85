package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/meterscan/internal/detection"
	"github.com/ironsheep/meterscan/internal/imaging"
	"github.com/ironsheep/meterscan/internal/ocr"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "meter_extract_marks").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(context.Background(), params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Extraction
	case "meter_extract_marks":
		return s.handleExtractMarks(ctx, args)
	case "meter_extract_region":
		return s.handleExtractRegion(ctx, args)
	case "meter_extract_full":
		return s.handleExtractFull(ctx, args)

	// Detection
	case "meter_detect_marks":
		return s.handleDetectMarks(args)
	case "meter_sample_color":
		return s.handleSampleColor(args)

	// Housekeeping
	case "image_load":
		return s.handleImageLoad(args)
	case "ocr_info":
		return s.handleOCRInfo()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// release drops path from the cache after a call unless it was already
// resident, i.e. loaded on purpose with image_load.
func (s *Server) release(path string) func() {
	if s.cache.Cached(path) {
		return func() {}
	}
	return func() { s.cache.Evict(path) }
}

func requirePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// === Extraction Handlers ===

type extractArgs struct {
	Path string `json:"path"`
	Lang string `json:"lang"`
}

func (s *Server) handleExtractMarks(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a extractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	defer s.release(a.Path)()
	return s.pipeline.WithLanguage(a.Lang).ProcessFile(ctx, a.Path)
}

type extractRegionArgs struct {
	Path   string `json:"path"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Lang   string `json:"lang"`
}

func (s *Server) handleExtractRegion(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a extractRegionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	defer s.release(a.Path)()
	r := detection.Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
	return s.pipeline.WithLanguage(a.Lang).ProcessRegionFile(ctx, a.Path, r)
}

func (s *Server) handleExtractFull(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a extractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	defer s.release(a.Path)()
	return s.pipeline.WithLanguage(a.Lang).ProcessFullFile(ctx, a.Path)
}

// === Detection Handlers ===

type detectMarksArgs struct {
	Path    string `json:"path"`
	Preview bool   `json:"preview"`
}

// DetectMarksResult lists the marks found in an image.
type DetectMarksResult struct {
	Width   int                   `json:"width"`
	Height  int                   `json:"height"`
	Count   int                   `json:"count"`
	Marks   []detection.Candidate `json:"marks"`
	Preview *imaging.EncodedImage `json:"preview,omitempty"`
}

func (s *Server) handleDetectMarks(args json.RawMessage) (interface{}, error) {
	var a detectMarksArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	defer s.release(a.Path)()

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	marks, err := s.pipeline.Detect(img)
	if err != nil {
		return nil, err
	}

	res := &DetectMarksResult{
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		Count:  len(marks),
		Marks:  marks,
	}
	if a.Preview {
		boxes := make([]imaging.Box, len(marks))
		for i, m := range marks {
			boxes[i] = imaging.Box{Rect: m.Expanded.Bounds(), Label: fmt.Sprintf("Area %d", m.Index)}
		}
		res.Preview, err = imaging.EncodePNG(imaging.Annotate(img, boxes, imaging.DefaultBoxColor))
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

type sampleColorArgs struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

func (s *Server) handleSampleColor(args json.RawMessage) (interface{}, error) {
	var a sampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	defer s.release(a.Path)()

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.SampleColor(img, a.X, a.Y, s.pipeline.Config().DetectionOptions().Threshold)
}

// === Housekeeping Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := requirePath(a.Path); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// OCRInfoResult describes the recognition and detection backends.
type OCRInfoResult struct {
	OCR       ocr.Info `json:"ocr"`
	Language  string   `json:"language"`
	Detector  string   `json:"detector"`
	Detectors []string `json:"detectors"`
}

func (s *Server) handleOCRInfo() (interface{}, error) {
	cfg := s.pipeline.Config()
	return &OCRInfoResult{
		OCR:       ocr.Describe(s.pipeline.Engine()),
		Language:  cfg.Language,
		Detector:  cfg.Detector,
		Detectors: detection.Backends(),
	}, nil
}

package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func langProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Optional Tesseract language code, e.g. \"spa\" or \"eng+spa\". Defaults to the server setting",
	}
}

func intProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Extraction
		{
			Name:        "meter_extract_marks",
			Description: "Find the red marks on a meter photo, read the text around each one and return the readings with typed numeric tokens (caudal, volumen, decimal, numero_letra, entero).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"lang": langProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "meter_extract_region",
			Description: "Read the text in one rectangle of a meter photo, as if it were a detected mark. The rectangle is expanded by the configured margins before recognition.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"x":      intProperty("Left edge X coordinate (0-based)"),
					"y":      intProperty("Top edge Y coordinate (0-based)"),
					"width":  intProperty("Rectangle width in pixels, must be positive"),
					"height": intProperty("Rectangle height in pixels, must be positive"),
					"lang":   langProperty(),
				},
				"required": []string{"path", "x", "y", "width", "height"},
			},
		},
		{
			Name:        "meter_extract_full",
			Description: "Read the whole image as a document. Returns the text, line-numbered tokens (decimal, entero, porcentaje, moneda, fecha, telefono) and a title/paragraph breakdown.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"lang": langProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Detection
		{
			Name:        "meter_detect_marks",
			Description: "Locate the red marks without running OCR. Returns each mark's rectangle and its expanded crop, top to bottom. Optionally returns a PNG preview with the crops outlined.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"preview": map[string]interface{}{
						"type":        "boolean",
						"description": "Include a base64 PNG with the expanded rectangles drawn. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "meter_sample_color",
			Description: "Get the color at a pixel in RGB and HSV and whether the mark detector would treat it as marked. Useful for tuning thresholds.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"x":    intProperty("X coordinate (0-based, from left)"),
					"y":    intProperty("Y coordinate (0-based, from top)"),
				},
				"required": []string{"path", "x", "y"},
			},
		},

		// Housekeeping
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The image stays cached for subsequent calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_info",
			Description: "Report the OCR engine in use, its availability and version, and the available mark detectors.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}

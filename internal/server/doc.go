// Package server implements the MCP (Model Context Protocol) server for meter reading.
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Extraction:
//   - meter_extract_marks: Detect red marks and read the text around them
//   - meter_extract_region: Read one caller supplied rectangle
//   - meter_extract_full: Read the whole image as a document
//
// Detection:
//   - meter_detect_marks: Mark rectangles without OCR, optional PNG preview
//   - meter_sample_color: Pixel color and whether it counts as marked
//
// Housekeeping:
//   - image_load: Load and keep an image cached, return its metadata
//   - ocr_info: Engine availability, language and detector backends
//
// # Image Caching
//
// Images are decoded through a shared cache. Tools drop an image from the
// cache when they finish unless it was loaded beforehand with image_load.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
package server

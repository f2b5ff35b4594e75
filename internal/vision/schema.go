package vision

import "encoding/json"

// actionToolSchemas declares the ten agent actions as tool-use schemas
// (spec §4.6: "constrained to emit any tool-use block drawn from the
// declared schema for the ten agent actions").
func actionToolSchemas() []toolSchema {
	return []toolSchema{
		{Name: "click", Description: "Click an element by accessibility ref, or by raw coordinates.", InputSchema: rawSchema(`{
			"type": "object",
			"properties": {
				"ref": {"type": "string", "description": "Accessibility-snapshot ref, e.g. e5"},
				"x": {"type": "number"},
				"y": {"type": "number"},
				"button": {"type": "string", "enum": ["left", "right", "middle"]}
			}
		}`)},
		{Name: "type", Description: "Type text into an element, optionally clearing it first.", InputSchema: rawSchema(`{
			"type": "object",
			"properties": {
				"ref": {"type": "string"},
				"text": {"type": "string"},
				"clear_first": {"type": "boolean"}
			},
			"required": ["text"]
		}`)},
		{Name: "scroll", Description: "Scroll the page in one direction.", InputSchema: rawSchema(`{
			"type": "object",
			"properties": {
				"direction": {"type": "string", "enum": ["up", "down", "left", "right"]},
				"amount": {"type": "number"}
			},
			"required": ["direction"]
		}`)},
		{Name: "navigate", Description: "Navigate the page to a URL.", InputSchema: rawSchema(`{
			"type": "object",
			"properties": {"url": {"type": "string"}},
			"required": ["url"]
		}`)},
		{Name: "keyboard", Description: "Press a key or key combo, e.g. Control+a.", InputSchema: rawSchema(`{
			"type": "object",
			"properties": {"key": {"type": "string"}},
			"required": ["key"]
		}`)},
		{Name: "wait", Description: "Pause for a duration in milliseconds.", InputSchema: rawSchema(`{
			"type": "object",
			"properties": {"ms": {"type": "number"}}
		}`)},
		{Name: "hover", Description: "Hover an element by ref, or raw coordinates.", InputSchema: rawSchema(`{
			"type": "object",
			"properties": {
				"ref": {"type": "string"},
				"x": {"type": "number"},
				"y": {"type": "number"}
			}
		}`)},
		{Name: "select", Description: "Select an option in a dropdown by value or label.", InputSchema: rawSchema(`{
			"type": "object",
			"properties": {
				"ref": {"type": "string"},
				"value": {"type": "string"}
			},
			"required": ["ref", "value"]
		}`)},
		{Name: "done", Description: "Finish the task successfully.", InputSchema: rawSchema(`{
			"type": "object",
			"properties": {
				"success": {"type": "boolean"},
				"summary": {"type": "string"},
				"extracted_data": {"type": "object"}
			},
			"required": ["success", "summary"]
		}`)},
		{Name: "fail", Description: "Abandon the task with a reason.", InputSchema: rawSchema(`{
			"type": "object",
			"properties": {"reason": {"type": "string"}},
			"required": ["reason"]
		}`)},
	}
}

func rawSchema(s string) json.RawMessage { return json.RawMessage(s) }

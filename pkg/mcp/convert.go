package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/mcplab/pkg/api"
)

func convertTool(t *mcp.Tool) (api.ToolDescriptor, error) {
	var schema json.RawMessage
	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return api.ToolDescriptor{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		schema = data
	}

	return api.ToolDescriptor{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}, nil
}

func convertResult(result *mcp.CallToolResult) *api.ToolResult {
	out := &api.ToolResult{
		Content:           make([]api.ContentPart, 0, len(result.Content)),
		StructuredContent: result.StructuredContent,
		IsError:           result.IsError,
	}
	for _, c := range result.Content {
		out.Content = append(out.Content, convertContent(c))
	}
	return out
}

func convertContent(c mcp.Content) api.ContentPart {
	switch v := c.(type) {
	case *mcp.TextContent:
		return api.ContentPart{Type: api.ContentTypeText, Text: v.Text}
	case *mcp.ImageContent:
		return api.ContentPart{Type: api.ContentTypeImage, Data: v.Data, MIMEType: v.MIMEType}
	case *mcp.AudioContent:
		return api.ContentPart{Type: api.ContentTypeAudio, Data: v.Data, MIMEType: v.MIMEType}
	case *mcp.ResourceLink:
		return api.ContentPart{Type: api.ContentTypeResourceLink, URI: v.URI, MIMEType: v.MIMEType, Text: v.Name}
	case *mcp.EmbeddedResource:
		part := api.ContentPart{Type: api.ContentTypeResource}
		if v.Resource != nil {
			part.URI = v.Resource.URI
			part.MIMEType = v.Resource.MIMEType
			part.Text = v.Resource.Text
			part.Data = v.Resource.Blob
		}
		return part
	default:
		raw, _ := json.Marshal(c)
		return api.ContentPart{Type: "unknown", Raw: raw}
	}
}

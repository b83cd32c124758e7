package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("build_page",
		mcp.WithPromptDescription("Guide through building a page from a short brief"),
		mcp.WithArgument("brief",
			mcp.ArgumentDescription("What the page is for, e.g. a product launch"),
			mcp.RequiredArgument(),
		),
	), s.handleBuildPagePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("tidy_page",
		mcp.WithPromptDescription("Review the active page and clean up its layout"),
	), s.handleTidyPagePrompt)
}

func (s *Server) handleBuildPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	brief := req.Params.Arguments["brief"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a page for: %s", brief),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a page for: %s

Steps:
1. Call get_document to see the current settings and elements
2. Pick a theme with set_theme
3. Add a headline with add_element (kind "text", props {"content": "...", "fontSize": 48})
4. Add supporting text, images, buttons and stats with add_element; omit x and y to let the layout engine place them
5. Call arrange_elements to line everything up on the grid
6. Call save when you are done

Every change can be undone with undo, so experiment freely.`, brief),
				},
			},
		},
	}, nil
}

func (s *Server) handleTidyPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Tidy up the active page",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: `Tidy up the active page:
1. Call get_document and look for overlapping or off-grid elements
2. Fix stacking with reorder_elements so backgrounds draw first
3. Call arrange_elements for groups that belong together
4. Remove empty text elements with remove_element (the user will be asked to approve)
5. Call save`,
				},
			},
		},
	}, nil
}

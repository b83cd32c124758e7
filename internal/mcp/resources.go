package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const documentURIPrefix = "editor://document/"

func (s *Server) registerResources() {
	// ── editor://documents ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"editor://documents",
		"Open Documents",
		mcp.WithMIMEType("application/json"),
	), s.handleDocumentsResource)

	// ── editor://document/{key} ────────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			documentURIPrefix+"{key}",
			"Editor Document",
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleDocumentResource,
	)
}

func (s *Server) handleDocumentsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	type documentSummary struct {
		Key      string `json:"key"`
		Elements int    `json:"elements"`
		Dirty    bool   `json:"dirty"`
	}

	var summaries []documentSummary
	for _, key := range s.editors.Keys() {
		store, err := s.editors.Session(key)
		if err != nil {
			continue
		}
		snap := store.Snapshot()
		summaries = append(summaries, documentSummary{Key: key, Elements: snap.ElementCount, Dirty: snap.Dirty})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "editor://documents",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleDocumentResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	key := keyFromURI(uri)
	if key == "" {
		return nil, fmt.Errorf("could not extract key from URI: %s", uri)
	}

	store, err := s.editors.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := store.ExportDocument()
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// keyFromURI extracts the document key from "editor://document/{key}".
// Keys containing "/" arrive path-escaped.
func keyFromURI(uri string) string {
	raw, ok := strings.CutPrefix(uri, documentURIPrefix)
	if !ok || raw == "" {
		return ""
	}
	key, err := url.PathUnescape(raw)
	if err != nil {
		return ""
	}
	return key
}

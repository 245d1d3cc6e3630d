package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/agentic-research/dvk/internal/catalog"
	"github.com/agentic-research/dvk/internal/record"
	"github.com/agentic-research/dvk/internal/sequence"
	"github.com/agentic-research/dvk/internal/view"
)

var metricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [root...]",
	Short: "Serve catalog queries as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		roots, err := resolveRoots(args)
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cmd, roots)
		if err != nil {
			return err
		}

		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			go func() {
				if err := http.ListenAndServe(metricsAddr, mux); err != nil {
					log.Printf("Serve: metrics server failed: %v", err)
				}
			}()
			log.Printf("Serve: metrics listening on %s", metricsAddr)
		}

		return server.ServeStdio(newCatalogServer(cat).mcpServer())
	},
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address")
	rootCmd.AddCommand(serveCmd)
}

// catalogServer answers tool calls against one loaded catalog. Tool calls
// may arrive concurrently; the view is shared, so calls are serialized.
type catalogServer struct {
	mu    sync.Mutex
	cat   *catalog.Catalog
	view  *view.View
	graph *sequence.Graph
}

func newCatalogServer(cat *catalog.Catalog) *catalogServer {
	return &catalogServer{cat: cat, view: view.New(cat), graph: sequence.Build(cat)}
}

func (s *catalogServer) mcpServer() *server.MCPServer {
	srv := server.NewMCPServer("dvk", "0.1.0", server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("catalog_size",
		mcp.WithDescription("Number of records in the catalog"),
	), s.handleSize)

	srv.AddTool(mcp.NewTool("catalog_list",
		mcp.WithDescription("Sorted and filtered records. Queries accept words, \"phrases\", AND/OR/NOT (& | !) and parentheses."),
		mcp.WithString("sort", mcp.Description("title, time or rating")),
		mcp.WithBoolean("group_by_artist"),
		mcp.WithBoolean("group_by_sequence"),
		mcp.WithBoolean("group_by_section"),
		mcp.WithBoolean("reverse"),
		mcp.WithString("title", mcp.Description("Query on titles")),
		mcp.WithString("description", mcp.Description("Query on descriptions")),
		mcp.WithString("web_tags", mcp.Description("Query on web tags")),
		mcp.WithString("user_tags", mcp.Description("Query on user tags")),
		mcp.WithString("artists", mcp.Description("Query on artists")),
		mcp.WithBoolean("case_sensitive"),
		mcp.WithNumber("offset", mcp.Description("First position to return")),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default 50)")),
	), s.handleList)

	srv.AddTool(mcp.NewTool("catalog_record",
		mcp.WithDescription("Every field of one record"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
	), s.handleRecord)

	srv.AddTool(mcp.NewTool("catalog_sequence",
		mcp.WithDescription("Outline of the sequence a record belongs to"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
		mcp.WithString("section", mcp.Description("Only records of this section")),
	), s.handleSequence)

	return srv
}

func toJSON(v any) string {
	return oj.JSON(v, &ojg.Options{Sort: true})
}

func (s *catalogServer) handleSize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(fmt.Sprint(s.cat.Size())), nil
}

func (s *catalogServer) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := view.ParseKey(req.GetString("sort", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.Sort(view.SortOptions{
		Key:             key,
		GroupByArtist:   req.GetBool("group_by_artist", false),
		GroupBySequence: req.GetBool("group_by_sequence", false),
		GroupBySection:  req.GetBool("group_by_section", false),
		Reverse:         req.GetBool("reverse", false),
	})
	if err := s.view.Filter(view.FilterQuery{
		Title:         req.GetString("title", ""),
		Description:   req.GetString("description", ""),
		WebTags:       req.GetString("web_tags", ""),
		UserTags:      req.GetString("user_tags", ""),
		Artists:       req.GetString("artists", ""),
		CaseSensitive: req.GetBool("case_sensitive", false),
	}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	offset := max(req.GetInt("offset", 0), 0)
	limit := req.GetInt("limit", 50)
	items := []any{}
	for i := offset; i < s.view.Len() && len(items) < limit; i++ {
		items = append(items, map[string]any{
			"id":      s.view.IDAt(i),
			"title":   s.view.TitleAt(i),
			"artists": stringsAny(s.view.ArtistsAt(i)),
			"time":    record.FormatTime(s.view.TimeAt(i)),
			"rating":  s.view.RatingAt(i),
			"media":   s.view.MediaFileAt(i),
		})
	}
	return mcp.NewToolResultText(toJSON(map[string]any{
		"total": s.view.Len(),
		"items": items,
	})), nil
}

func (s *catalogServer) handleRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r := s.cat.Record(s.cat.IndexOfID(id))
	if r == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no record with id %q", id)), nil
	}
	return mcp.NewToolResultText(toJSON(map[string]any{
		"id":               r.ID,
		"path":             r.Path,
		"title":            r.Title,
		"artists":          stringsAny(r.Artists),
		"time":             record.FormatTime(r.Time),
		"web_tags":         stringsAny(r.WebTags),
		"user_tags":        stringsAny(r.UserTags),
		"description":      r.Description,
		"page_url":         r.PageURL,
		"media_url":        r.MediaURL,
		"secondary_url":    r.SecondaryURL,
		"media_file":       r.MediaFile,
		"secondary_file":   r.SecondaryFile,
		"last_ids":         stringsAny(r.LastIDs),
		"next_ids":         stringsAny(r.NextIDs),
		"first_in_section": r.FirstInSection,
		"last_in_section":  r.LastInSection,
		"sequence_title":   r.SequenceTitle,
		"section_title":    r.SectionTitle,
		"branch_titles":    stringsAny(r.BranchTitles),
		"rating":           r.Rating,
	})), nil
}

func (s *catalogServer) handleSequence(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start := s.cat.IndexOfID(id)
	if start < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("no record with id %q", id)), nil
	}

	items := []any{}
	if section := req.GetString("section", ""); section != "" {
		for _, i := range s.graph.Indices(start, section, true) {
			items = append(items, map[string]any{"id": s.cat.ID(i), "title": s.cat.Title(i)})
		}
		return mcp.NewToolResultText(toJSON(items)), nil
	}
	for _, e := range s.graph.Outline(start) {
		item := map[string]any{"depth": e.Depth}
		switch e.Kind {
		case sequence.KindBranch:
			item["branch"] = e.Label
		case sequence.KindRepeat:
			item["id"] = s.cat.ID(e.Index)
			item["repeat"] = true
		default:
			item["id"] = s.cat.ID(e.Index)
			item["title"] = s.cat.Title(e.Index)
		}
		items = append(items, item)
	}
	return mcp.NewToolResultText(toJSON(items)), nil
}

func stringsAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

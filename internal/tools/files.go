package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/adamcfield/github-mcp-proxy/internal/upstream"
)

const searchPageSize = 20

type contentFile struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type contentEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

func (g *GitHub) contentsLocator(path, branch string) string {
	locator := g.repoPath("/contents/%s", path)
	if branch != "" {
		locator += "?ref=" + url.QueryEscape(branch)
	}
	return locator
}

func (g *GitHub) readFileDescriptor() Descriptor {
	return Descriptor{
		Name:        "read_file",
		Description: "Read the contents of a file from the repository",
		Schema: Schema{
			"path":   {Type: TypeString, Required: true, Description: "Path to the file within the repository"},
			"branch": {Type: TypeString, Description: "Branch or ref to read from (defaults to the default branch)"},
		},
	}
}

func (g *GitHub) readFile(ctx context.Context, args Args) (Envelope, error) {
	path := args.String("path")

	var raw json.RawMessage
	if env, err := g.call(ctx, "read_file", g.contentsLocator(path, args.String("branch")), nil, &raw); env != nil || err != nil {
		return deref(env), err
	}

	// The contents endpoint returns an array for directories.
	if isJSONArray(raw) {
		return Errorf("Path %q is a directory. Use list_files to browse it.", path), nil
	}

	var file contentFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return Envelope{}, fmt.Errorf("read_file: decode response: %w", err)
	}
	if file.Type == "dir" {
		return Errorf("Path %q is a directory. Use list_files to browse it.", path), nil
	}

	decoded, err := decodeContent(file.Content, file.Encoding)
	if err != nil {
		return Envelope{}, fmt.Errorf("read_file %s: %w", path, err)
	}
	return Text(decoded), nil
}

// decodeContent reverses the binary-safe encoding the contents endpoint
// applies. GitHub wraps base64 payloads with newlines; strip them first.
func decodeContent(content, encoding string) (string, error) {
	switch encoding {
	case "base64":
		compact := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' {
				return -1
			}
			return r
		}, content)
		b, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return "", fmt.Errorf("decode base64 content: %w", err)
		}
		return string(b), nil
	case "", "none":
		return content, nil
	default:
		return "", fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

func (g *GitHub) writeFileDescriptor() Descriptor {
	return Descriptor{
		Name:        "write_file",
		Description: "Create or update a file in the repository",
		Schema: Schema{
			"path":    {Type: TypeString, Required: true, Description: "Path of the file to write"},
			"content": {Type: TypeString, Required: true, Description: "New file content as plain text"},
			"message": {Type: TypeString, Required: true, Description: "Commit message for the change"},
			"branch":  {Type: TypeString, Description: "Branch to commit to (defaults to the default branch)"},
		},
	}
}

type writeFileResponse struct {
	Content struct {
		Path string `json:"path"`
		SHA  string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

func (g *GitHub) writeFile(ctx context.Context, args Args) (Envelope, error) {
	path := args.String("path")
	branch := args.String("branch")

	// Fetch the current version token immediately before the write so a
	// stale token never survives across invocations. 404 means the file does
	// not exist yet and the write is a create.
	sha, env, err := g.currentFileSHA(ctx, path, branch)
	if env != nil || err != nil {
		return deref(env), err
	}

	body := map[string]any{
		"message": args.String("message"),
		"content": base64.StdEncoding.EncodeToString([]byte(args.String("content"))),
	}
	if branch != "" {
		body["branch"] = branch
	}
	if sha != "" {
		body["sha"] = sha
	}

	var result writeFileResponse
	if env, err := g.call(ctx, "write_file", g.repoPath("/contents/%s", path), &upstream.RequestOptions{
		Method: http.MethodPut,
		Body:   body,
	}, &result); env != nil || err != nil {
		return deref(env), err
	}

	verb := "Created"
	if sha != "" {
		verb = "Updated"
	}
	return Textf("%s %s (commit %s)", verb, path, shortSHA(result.Commit.SHA)), nil
}

// currentFileSHA resolves the optimistic-concurrency token for path, or ""
// when the file does not exist. Any upstream failure other than 404 aborts
// the write with the uniform error envelope.
func (g *GitHub) currentFileSHA(ctx context.Context, path, branch string) (string, *Envelope, error) {
	resp, err := g.client.Do(ctx, g.contentsLocator(path, branch), nil)
	if err != nil {
		return "", nil, fmt.Errorf("write_file: check existing file: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil, nil
	case !isSuccess(resp.StatusCode):
		env, err := g.errorEnvelope("write_file", resp)
		if err != nil {
			return "", nil, err
		}
		return "", &env, nil
	}

	var file contentFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return "", nil, fmt.Errorf("write_file: decode existing file: %w", err)
	}
	return file.SHA, nil, nil
}

func (g *GitHub) listFilesDescriptor() Descriptor {
	return Descriptor{
		Name:        "list_files",
		Description: "List files and directories at a path in the repository",
		Schema: Schema{
			"path":   {Type: TypeString, Default: "", Description: "Directory path to list (defaults to the repository root)"},
			"branch": {Type: TypeString, Description: "Branch or ref to list from (defaults to the default branch)"},
		},
	}
}

func (g *GitHub) listFiles(ctx context.Context, args Args) (Envelope, error) {
	path := args.String("path")

	var raw json.RawMessage
	if env, err := g.call(ctx, "list_files", g.contentsLocator(path, args.String("branch")), nil, &raw); env != nil || err != nil {
		return deref(env), err
	}

	if !isJSONArray(raw) {
		return Errorf("Path %q is a file, not a directory. Use read_file to fetch it.", path), nil
	}

	var entries []contentEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Envelope{}, fmt.Errorf("list_files: decode response: %w", err)
	}

	display := path
	if display == "" {
		display = "/"
	}
	lines := []string{fmt.Sprintf("Contents of %s:", display)}
	for _, e := range entries {
		lines = append(lines, renderFileLine(e.Type, e.Path, e.Size))
	}
	return Text(joinLines(lines)), nil
}

func (g *GitHub) searchFilesDescriptor() Descriptor {
	return Descriptor{
		Name:        "search_files",
		Description: "Search code within the repository",
		Schema: Schema{
			"query": {Type: TypeString, Required: true, Description: "Search query (GitHub code search syntax)"},
		},
	}
}

type codeSearchResponse struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		Name string `json:"name"`
		Path string `json:"path"`
	} `json:"items"`
}

func (g *GitHub) searchFiles(ctx context.Context, args Args) (Envelope, error) {
	query := args.String("query")

	// Scope the query to the fixed repository server-side.
	scoped := fmt.Sprintf("%s repo:%s/%s", query, g.owner, g.repo)
	locator := fmt.Sprintf("/search/code?q=%s&per_page=%d", url.QueryEscape(scoped), searchPageSize)

	var result codeSearchResponse
	if env, err := g.call(ctx, "search_files", locator, nil, &result); env != nil || err != nil {
		return deref(env), err
	}

	if result.TotalCount == 0 {
		return Textf("No results found for %q.", query), nil
	}

	lines := []string{fmt.Sprintf("Found %d result(s) for %q:", result.TotalCount, query)}
	for _, item := range result.Items {
		lines = append(lines, fmt.Sprintf("%s %s", glyphFile, item.Path))
	}
	return Text(joinLines(lines)), nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

func deref(env *Envelope) Envelope {
	if env == nil {
		return Envelope{}
	}
	return *env
}

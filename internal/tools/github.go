package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/adamcfield/github-mcp-proxy/internal/telemetry"
	"github.com/adamcfield/github-mcp-proxy/internal/upstream"
)

// GitHub implements the repository-management tool set against one fixed
// owner/repo pair. Handlers hold no state between calls; every invocation
// re-fetches from upstream.
type GitHub struct {
	client *upstream.Client
	owner  string
	repo   string
}

func NewGitHub(client *upstream.Client, owner, repo string) *GitHub {
	return &GitHub{client: client, owner: owner, repo: repo}
}

// Register adds all repository tools to the registry.
func (g *GitHub) Register(reg *Registry) error {
	entries := []struct {
		desc    Descriptor
		handler Handler
	}{
		{g.readFileDescriptor(), g.readFile},
		{g.writeFileDescriptor(), g.writeFile},
		{g.listFilesDescriptor(), g.listFiles},
		{g.searchFilesDescriptor(), g.searchFiles},
		{g.listBranchesDescriptor(), g.listBranches},
		{g.getFileTreeDescriptor(), g.getFileTree},
		{g.listPRsDescriptor(), g.listPRs},
		{g.getPRDescriptor(), g.getPR},
		{g.createPRDescriptor(), g.createPR},
		{g.updatePRDescriptor(), g.updatePR},
		{g.mergePRDescriptor(), g.mergePR},
		{g.closePRDescriptor(), g.closePR},
		{g.addPRCommentDescriptor(), g.addPRComment},
		{g.requestPRReviewDescriptor(), g.requestPRReview},
	}
	for _, e := range entries {
		if err := reg.Register(e.desc, e.handler); err != nil {
			return err
		}
	}
	return nil
}

func (g *GitHub) repoPath(format string, args ...any) string {
	return fmt.Sprintf("/repos/%s/%s", g.owner, g.repo) + fmt.Sprintf(format, args...)
}

// call issues one upstream request. A non-2xx status becomes the uniform
// error envelope; on success the body is decoded into out when out is
// non-nil. A nil envelope and nil error mean the call succeeded.
func (g *GitHub) call(ctx context.Context, op, locator string, opts *upstream.RequestOptions, out any) (*Envelope, error) {
	resp, err := g.client.Do(ctx, locator, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		env, err := g.errorEnvelope(op, resp)
		if err != nil {
			return nil, err
		}
		return &env, nil
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil, nil
}

// errorEnvelope reads a failed response and renders the shared
// "Error <status>: <body>" diagnostic with the upstream text verbatim.
func (g *GitHub) errorEnvelope(op string, resp *http.Response) (Envelope, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, fmt.Errorf("%s HTTP %d: read body: %w", op, resp.StatusCode, err)
	}
	telemetry.IncUpstreamError(op, resp.StatusCode)
	return Errorf("Error %d: %s", resp.StatusCode, body), nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

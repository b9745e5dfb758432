package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/adamcfield/github-mcp-proxy/internal/telemetry"
	"github.com/adamcfield/github-mcp-proxy/internal/upstream"
)

const prPageSize = 50

type pullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	Draft   bool   `json:"draft"`
	Merged  bool   `json:"merged"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	User    struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	Additions          int `json:"additions"`
	Deletions          int `json:"deletions"`
	ChangedFiles       int `json:"changed_files"`
	RequestedReviewers []struct {
		Login string `json:"login"`
	} `json:"requested_reviewers"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

func (g *GitHub) listPRsDescriptor() Descriptor {
	return Descriptor{
		Name:        "list_prs",
		Description: "List pull requests in the repository",
		Schema: Schema{
			"state": {Type: TypeString, Default: "open", Enum: []string{"open", "closed", "all"}, Description: "Filter by pull request state"},
			"base":  {Type: TypeString, Description: "Filter by base branch name"},
			"head":  {Type: TypeString, Description: "Filter by head branch name"},
		},
	}
}

func (g *GitHub) listPRs(ctx context.Context, args Args) (Envelope, error) {
	query := url.Values{}
	query.Set("state", args.String("state"))
	query.Set("per_page", fmt.Sprintf("%d", prPageSize))
	if base := args.String("base"); base != "" {
		query.Set("base", base)
	}
	if head := args.String("head"); head != "" {
		query.Set("head", head)
	}

	var prs []pullRequest
	locator := g.repoPath("/pulls?%s", query.Encode())
	if env, err := g.call(ctx, "list_prs", locator, nil, &prs); env != nil || err != nil {
		return deref(env), err
	}

	if len(prs) == 0 {
		return Text("No pull requests found."), nil
	}

	lines := []string{fmt.Sprintf("Pull requests in %s/%s:", g.owner, g.repo)}
	for _, pr := range prs {
		lines = append(lines, fmt.Sprintf("#%d%s %s (%s -> %s) by %s [%s]",
			pr.Number, draftTag(pr.Draft), pr.Title, pr.Head.Ref, pr.Base.Ref, pr.User.Login, pr.State))
	}
	return Text(joinLines(lines)), nil
}

func (g *GitHub) getPRDescriptor() Descriptor {
	return Descriptor{
		Name:        "get_pr",
		Description: "Get full details of a pull request",
		Schema: Schema{
			"pr_number": {Type: TypeNumber, Required: true, Minimum: minOf(1), Description: "Pull request number"},
		},
	}
}

func (g *GitHub) getPR(ctx context.Context, args Args) (Envelope, error) {
	number := args.Int("pr_number")

	var pr pullRequest
	if env, err := g.call(ctx, "get_pr", g.repoPath("/pulls/%d", number), nil, &pr); env != nil || err != nil {
		return deref(env), err
	}

	state := pr.State
	if pr.Merged {
		state = "merged"
	}

	lines := []string{
		fmt.Sprintf("PR #%d%s: %s", pr.Number, draftTag(pr.Draft), pr.Title),
		fmt.Sprintf("State: %s", state),
		fmt.Sprintf("Author: %s", pr.User.Login),
		fmt.Sprintf("Branches: %s -> %s", pr.Head.Ref, pr.Base.Ref),
		fmt.Sprintf("Changes: +%d -%d in %d file(s)", pr.Additions, pr.Deletions, pr.ChangedFiles),
	}
	if len(pr.RequestedReviewers) > 0 {
		logins := make([]string, 0, len(pr.RequestedReviewers))
		for _, r := range pr.RequestedReviewers {
			logins = append(logins, r.Login)
		}
		lines = append(lines, fmt.Sprintf("Reviewers: %s", strings.Join(logins, ", ")))
	}
	if len(pr.Labels) > 0 {
		names := make([]string, 0, len(pr.Labels))
		for _, l := range pr.Labels {
			names = append(names, l.Name)
		}
		lines = append(lines, fmt.Sprintf("Labels: %s", strings.Join(names, ", ")))
	}
	if pr.Body != "" {
		lines = append(lines, "", pr.Body)
	}
	return Text(joinLines(lines)), nil
}

func (g *GitHub) createPRDescriptor() Descriptor {
	return Descriptor{
		Name:        "create_pr",
		Description: "Open a new pull request",
		Schema: Schema{
			"title": {Type: TypeString, Required: true, Description: "Pull request title"},
			"head":  {Type: TypeString, Required: true, Description: "Branch containing the changes"},
			"base":  {Type: TypeString, Required: true, Description: "Branch to merge the changes into"},
			"body":  {Type: TypeString, Description: "Pull request description"},
			"draft": {Type: TypeBoolean, Default: false, Description: "Open the pull request as a draft"},
		},
	}
}

func (g *GitHub) createPR(ctx context.Context, args Args) (Envelope, error) {
	body := map[string]any{
		"title": args.String("title"),
		"head":  args.String("head"),
		"base":  args.String("base"),
		"draft": args.Bool("draft"),
	}
	if desc := args.String("body"); desc != "" {
		body["body"] = desc
	}

	resp, err := g.client.Do(ctx, g.repoPath("/pulls"), &upstream.RequestOptions{
		Method: http.MethodPost,
		Body:   body,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("create_pr: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return Envelope{}, fmt.Errorf("create_pr HTTP %d: read body: %w", resp.StatusCode, readErr)
		}
		telemetry.IncUpstreamError("create_pr", resp.StatusCode)
		return Errorf("Error %d: %s", resp.StatusCode, validationMessage(raw)), nil
	}

	var pr pullRequest
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return Envelope{}, fmt.Errorf("create_pr: decode response: %w", err)
	}

	kind := "pull request"
	if pr.Draft {
		kind = "draft pull request"
	}
	return Textf("Created %s #%d: %s\n%s", kind, pr.Number, pr.Title, pr.HTMLURL), nil
}

// validationMessage extracts the first structured error message from a
// GitHub validation failure body, falling back to the top-level message and
// finally to the raw body.
func validationMessage(raw []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		for _, e := range parsed.Errors {
			if e.Message != "" {
				return e.Message
			}
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return string(raw)
}

func (g *GitHub) updatePRDescriptor() Descriptor {
	return Descriptor{
		Name:        "update_pr",
		Description: "Edit the title, description, or base branch of a pull request",
		Schema: Schema{
			"pr_number": {Type: TypeNumber, Required: true, Minimum: minOf(1), Description: "Pull request number"},
			"title":     {Type: TypeString, Description: "New pull request title"},
			"body":      {Type: TypeString, Description: "New pull request description"},
			"base":      {Type: TypeString, Description: "New base branch"},
		},
	}
}

func (g *GitHub) updatePR(ctx context.Context, args Args) (Envelope, error) {
	number := args.Int("pr_number")

	body := map[string]any{}
	for _, field := range []string{"title", "body", "base"} {
		if args.Has(field) {
			body[field] = args.String(field)
		}
	}
	if len(body) == 0 {
		return Error("Provide at least one of title, body, or base to update."), nil
	}

	var pr pullRequest
	if env, err := g.call(ctx, "update_pr", g.repoPath("/pulls/%d", number), &upstream.RequestOptions{
		Method: http.MethodPatch,
		Body:   body,
	}, &pr); env != nil || err != nil {
		return deref(env), err
	}

	return Textf("PR #%d updated: %s", pr.Number, pr.Title), nil
}

func (g *GitHub) mergePRDescriptor() Descriptor {
	return Descriptor{
		Name:        "merge_pr",
		Description: "Merge an open pull request",
		Schema: Schema{
			"pr_number":      {Type: TypeNumber, Required: true, Minimum: minOf(1), Description: "Pull request number"},
			"merge_method":   {Type: TypeString, Default: "merge", Enum: []string{"merge", "squash", "rebase"}, Description: "Merge strategy"},
			"commit_title":   {Type: TypeString, Description: "Custom title for the merge commit"},
			"commit_message": {Type: TypeString, Description: "Custom message for the merge commit"},
		},
	}
}

type mergeResponse struct {
	SHA     string `json:"sha"`
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

func (g *GitHub) mergePR(ctx context.Context, args Args) (Envelope, error) {
	number := args.Int("pr_number")

	body := map[string]any{
		"merge_method": args.String("merge_method"),
	}
	if title := args.String("commit_title"); title != "" {
		body["commit_title"] = title
	}
	if message := args.String("commit_message"); message != "" {
		body["commit_message"] = message
	}

	var result mergeResponse
	if env, err := g.call(ctx, "merge_pr", g.repoPath("/pulls/%d/merge", number), &upstream.RequestOptions{
		Method: http.MethodPut,
		Body:   body,
	}, &result); env != nil || err != nil {
		return deref(env), err
	}

	return Textf("PR #%d merged successfully. Merge commit: %s", number, shortSHA(result.SHA)), nil
}

func (g *GitHub) closePRDescriptor() Descriptor {
	return Descriptor{
		Name:        "close_pr",
		Description: "Close a pull request without merging it",
		Schema: Schema{
			"pr_number": {Type: TypeNumber, Required: true, Minimum: minOf(1), Description: "Pull request number"},
		},
	}
}

func (g *GitHub) closePR(ctx context.Context, args Args) (Envelope, error) {
	number := args.Int("pr_number")

	// Closing is a state transition, not a delete.
	var pr pullRequest
	if env, err := g.call(ctx, "close_pr", g.repoPath("/pulls/%d", number), &upstream.RequestOptions{
		Method: http.MethodPatch,
		Body:   map[string]string{"state": "closed"},
	}, &pr); env != nil || err != nil {
		return deref(env), err
	}

	return Textf("PR #%d closed: %s", pr.Number, pr.Title), nil
}

func (g *GitHub) addPRCommentDescriptor() Descriptor {
	return Descriptor{
		Name:        "add_pr_comment",
		Description: "Add a comment to a pull request conversation",
		Schema: Schema{
			"pr_number": {Type: TypeNumber, Required: true, Minimum: minOf(1), Description: "Pull request number"},
			"body":      {Type: TypeString, Required: true, Description: "Comment text"},
		},
	}
}

type comment struct {
	ID      int64  `json:"id"`
	HTMLURL string `json:"html_url"`
}

func (g *GitHub) addPRComment(ctx context.Context, args Args) (Envelope, error) {
	number := args.Int("pr_number")

	// Conversation comments live on the issues endpoint upstream; pull
	// requests and issues share one comment stream.
	var c comment
	if env, err := g.call(ctx, "add_pr_comment", g.repoPath("/issues/%d/comments", number), &upstream.RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"body": args.String("body")},
	}, &c); env != nil || err != nil {
		return deref(env), err
	}

	return Textf("Comment added to PR #%d: %s", number, c.HTMLURL), nil
}

func (g *GitHub) requestPRReviewDescriptor() Descriptor {
	return Descriptor{
		Name:        "request_pr_review",
		Description: "Request reviews on a pull request from one or more users",
		Schema: Schema{
			"pr_number": {Type: TypeNumber, Required: true, Minimum: minOf(1), Description: "Pull request number"},
			"reviewers": {Type: TypeArray, Items: TypeString, Required: true, Minimum: minOf(1), Description: "Usernames to request reviews from"},
		},
	}
}

func (g *GitHub) requestPRReview(ctx context.Context, args Args) (Envelope, error) {
	number := args.Int("pr_number")
	reviewers := args.Strings("reviewers")

	var pr pullRequest
	if env, err := g.call(ctx, "request_pr_review", g.repoPath("/pulls/%d/requested_reviewers", number), &upstream.RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]any{"reviewers": reviewers},
	}, &pr); env != nil || err != nil {
		return deref(env), err
	}

	return Textf("Requested review from %s on PR #%d.", strings.Join(reviewers, ", "), number), nil
}

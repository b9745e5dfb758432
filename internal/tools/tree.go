package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const branchPageSize = 30

func (g *GitHub) listBranchesDescriptor() Descriptor {
	return Descriptor{
		Name:        "list_branches",
		Description: "List branches in the repository",
		Schema:      Schema{},
	}
}

type branch struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
	Protected bool `json:"protected"`
}

func (g *GitHub) listBranches(ctx context.Context, args Args) (Envelope, error) {
	locator := g.repoPath("/branches?per_page=%d", branchPageSize)

	var branches []branch
	if env, err := g.call(ctx, "list_branches", locator, nil, &branches); env != nil || err != nil {
		return deref(env), err
	}

	if len(branches) == 0 {
		return Text("No branches found."), nil
	}

	lines := []string{fmt.Sprintf("Branches in %s/%s:", g.owner, g.repo)}
	for _, b := range branches {
		line := fmt.Sprintf("- %s (%s)", b.Name, shortSHA(b.Commit.SHA))
		if b.Protected {
			line += " [protected]"
		}
		lines = append(lines, line)
	}
	return Text(joinLines(lines)), nil
}

func (g *GitHub) getFileTreeDescriptor() Descriptor {
	return Descriptor{
		Name:        "get_file_tree",
		Description: "Get the full recursive file listing of a branch",
		Schema: Schema{
			"branch":      {Type: TypeString, Required: true, Description: "Branch whose tree to list"},
			"path_prefix": {Type: TypeString, Description: "Only include files whose path starts with this prefix"},
		},
	}
}

type gitRef struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type gitCommit struct {
	Tree struct {
		SHA string `json:"sha"`
	} `json:"tree"`
}

type gitTree struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		Size int    `json:"size"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// getFileTree resolves branch -> commit -> recursive tree in three strictly
// sequential hops; each hop's locator is built from the previous response,
// and the first failing hop aborts the whole operation.
func (g *GitHub) getFileTree(ctx context.Context, args Args) (Envelope, error) {
	branchName := args.String("branch")
	prefix := args.String("path_prefix")

	var ref gitRef
	refLocator := g.repoPath("/git/ref/heads/%s", url.PathEscape(branchName))
	if env, err := g.call(ctx, "get_file_tree", refLocator, nil, &ref); env != nil || err != nil {
		return deref(env), err
	}

	var commit gitCommit
	commitLocator := g.repoPath("/git/commits/%s", ref.Object.SHA)
	if env, err := g.call(ctx, "get_file_tree", commitLocator, nil, &commit); env != nil || err != nil {
		return deref(env), err
	}

	var tree gitTree
	treeLocator := g.repoPath("/git/trees/%s?recursive=1", commit.Tree.SHA)
	if env, err := g.call(ctx, "get_file_tree", treeLocator, nil, &tree); env != nil || err != nil {
		return deref(env), err
	}

	// Subdirectories collapse implicitly: the fetch was recursive, so only
	// blob entries are files.
	lines := []string{}
	for _, entry := range tree.Tree {
		if entry.Type != "blob" {
			continue
		}
		if prefix != "" && !strings.HasPrefix(entry.Path, prefix) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s (%d bytes)", glyphFile, entry.Path, entry.Size))
	}

	var out strings.Builder
	if len(lines) == 0 {
		if prefix != "" {
			fmt.Fprintf(&out, "No files found under %q on branch %s.", prefix, branchName)
		} else {
			fmt.Fprintf(&out, "No files found on branch %s.", branchName)
		}
	} else {
		fmt.Fprintf(&out, "Files on branch %s (%d):\n", branchName, len(lines))
		out.WriteString(joinLines(lines))
	}
	if tree.Truncated {
		out.WriteString("\nWarning: the tree was truncated by the server; this listing is incomplete.")
	}
	return Text(out.String()), nil
}

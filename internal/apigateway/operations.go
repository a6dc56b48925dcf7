package apigateway

import (
	"context"
	"time"

	gh "github.com/google/go-github/v68/github"
)

// Issue mirrors spec.md §3.
type Issue struct {
	Number    int
	Title     string
	Body      string
	Labels    []string
	Assignees []string
	State     string
	UpdatedAt time.Time
	URL       string
}

// Review mirrors spec.md §3.
type Review struct {
	User        string
	State       string
	SubmittedAt time.Time
}

// PullRequest mirrors spec.md §3.
type PullRequest struct {
	Number    int
	Title     string
	Body      string
	HeadRef   string
	BaseRef   string
	State     string
	Draft     bool
	Reviewers []string
	Reviews   []Review
	CreatedAt time.Time
	MergedAt  *time.Time
	URL       string
}

// Branch is a minimal remote branch descriptor for the Team phase.
type Branch struct {
	Name      string
	LastSHA   string
	Protected bool
}

// Contributor is used for reviewer suggestion.
type Contributor struct {
	Login        string
	Contributions int
}

// RepoMetricsWindow summarizes activity in a time window, for
// team-health reporting in the Team phase.
type RepoMetricsWindow struct {
	OpenIssues   int
	OpenPRs      int
	MergedPRs    int
	CommitCount  int
}

// ListOpenIssues returns open issues, newest-updated first.
func (g *Gateway) ListOpenIssues(ctx context.Context) ([]Issue, error) {
	var out []Issue
	opts := &gh.IssueListByRepoOptions{State: "open", Sort: "updated", ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		var page []*gh.Issue
		var resp *gh.Response
		err := g.do(ctx, func() (*gh.Response, error) {
			var err error
			page, resp, err = g.gh.Issues.ListByRepo(ctx, g.owner, g.repo, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, i := range page {
			if i.IsPullRequest() {
				continue
			}
			out = append(out, issueFromGH(i))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// CreateIssue creates a new issue.
func (g *Gateway) CreateIssue(ctx context.Context, title, body string, labels []string) (Issue, error) {
	var result *gh.Issue
	err := g.do(ctx, func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		result, resp, err = g.gh.Issues.Create(ctx, g.owner, g.repo, &gh.IssueRequest{
			Title:  gh.Ptr(title),
			Body:   gh.Ptr(body),
			Labels: &labels,
		})
		return resp, err
	})
	if err != nil {
		return Issue{}, err
	}
	return issueFromGH(result), nil
}

// GetIssue fetches a single issue by number.
func (g *Gateway) GetIssue(ctx context.Context, number int) (Issue, error) {
	var result *gh.Issue
	err := g.do(ctx, func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		result, resp, err = g.gh.Issues.Get(ctx, g.owner, g.repo, number)
		return resp, err
	})
	if err != nil {
		return Issue{}, err
	}
	return issueFromGH(result), nil
}

// CommentIssue posts a comment on an issue or pull request.
func (g *Gateway) CommentIssue(ctx context.Context, number int, body string) error {
	return g.do(ctx, func() (*gh.Response, error) {
		_, resp, err := g.gh.Issues.CreateComment(ctx, g.owner, g.repo, number, &gh.IssueComment{Body: gh.Ptr(body)})
		return resp, err
	})
}

// ListPRs returns pull requests in the given state ("open", "closed", "all").
func (g *Gateway) ListPRs(ctx context.Context, state string) ([]PullRequest, error) {
	var out []PullRequest
	opts := &gh.PullRequestListOptions{State: state, ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		var page []*gh.PullRequest
		var resp *gh.Response
		err := g.do(ctx, func() (*gh.Response, error) {
			var err error
			page, resp, err = g.gh.PullRequests.List(ctx, g.owner, g.repo, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			out = append(out, prFromGH(p))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// ListPRsWithReviews returns open pull requests along with their reviews.
func (g *Gateway) ListPRsWithReviews(ctx context.Context) ([]PullRequest, error) {
	prs, err := g.ListPRs(ctx, "open")
	if err != nil {
		return nil, err
	}
	for i, pr := range prs {
		var reviews []*gh.PullRequestReview
		err := g.do(ctx, func() (*gh.Response, error) {
			var resp *gh.Response
			var err error
			reviews, resp, err = g.gh.PullRequests.ListReviews(ctx, g.owner, g.repo, pr.Number, &gh.ListOptions{PerPage: 100})
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, r := range reviews {
			prs[i].Reviews = append(prs[i].Reviews, Review{
				User:        r.GetUser().GetLogin(),
				State:       r.GetState(),
				SubmittedAt: r.GetSubmittedAt().Time,
			})
		}
	}
	return prs, nil
}

// CreatePR creates a new pull request.
func (g *Gateway) CreatePR(ctx context.Context, title, head, base, body string, draft bool) (PullRequest, error) {
	var result *gh.PullRequest
	err := g.do(ctx, func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		result, resp, err = g.gh.PullRequests.Create(ctx, g.owner, g.repo, &gh.NewPullRequest{
			Title: gh.Ptr(title),
			Head:  gh.Ptr(head),
			Base:  gh.Ptr(base),
			Body:  gh.Ptr(body),
			Draft: gh.Ptr(draft),
		})
		return resp, err
	})
	if err != nil {
		return PullRequest{}, err
	}
	return prFromGH(result), nil
}

// ListBranches returns remote branches, for the Team phase's
// cross-branch conflict scan.
func (g *Gateway) ListBranches(ctx context.Context) ([]Branch, error) {
	var out []Branch
	opts := &gh.BranchListOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		var page []*gh.Branch
		var resp *gh.Response
		err := g.do(ctx, func() (*gh.Response, error) {
			var err error
			page, resp, err = g.gh.Repositories.ListBranches(ctx, g.owner, g.repo, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, b := range page {
			out = append(out, Branch{Name: b.GetName(), LastSHA: b.GetCommit().GetSHA(), Protected: b.GetProtected()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// ListContributors returns repository contributors for reviewer suggestion.
func (g *Gateway) ListContributors(ctx context.Context) ([]Contributor, error) {
	var out []Contributor
	opts := &gh.ListContributorsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		var page []*gh.Contributor
		var resp *gh.Response
		err := g.do(ctx, func() (*gh.Response, error) {
			var err error
			page, resp, err = g.gh.Repositories.ListContributors(ctx, g.owner, g.repo, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, c := range page {
			out = append(out, Contributor{Login: c.GetLogin(), Contributions: c.GetContributions()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// SuggestReviewers ranks contributors by contribution count, excluding
// the authenticated user and any explicit exclude list, per §4.4.
func (g *Gateway) SuggestReviewers(ctx context.Context, limit int) ([]string, error) {
	contributors, err := g.ListContributors(ctx)
	if err != nil {
		return nil, err
	}
	excluded := map[string]bool{g.authenticatedUser: true}
	for _, login := range g.excludeReviewers {
		excluded[login] = true
	}
	var suggestions []string
	for _, c := range contributors {
		if excluded[c.Login] {
			continue
		}
		suggestions = append(suggestions, c.Login)
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions, nil
}

// CommitsSince returns one page (up to 100) of the commits reachable
// from the given ref, newest first, each as "<SHA> <message>". The
// list walks back from ref with no lower bound; later pages are not
// fetched.
func (g *Gateway) CommitsSince(ctx context.Context, sha string) ([]string, error) {
	var out []string
	opts := &gh.CommitsListOptions{SHA: sha, ListOptions: gh.ListOptions{PerPage: 100}}
	var page []*gh.RepositoryCommit
	var resp *gh.Response
	err := g.do(ctx, func() (*gh.Response, error) {
		var err error
		page, resp, err = g.gh.Repositories.ListCommits(ctx, g.owner, g.repo, opts)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	for _, c := range page {
		out = append(out, c.GetSHA()+" "+c.GetCommit().GetMessage())
	}
	return out, nil
}

// RepoMetrics computes the Team phase's health summary: the current
// number of open issues and open PRs, and the number of PRs merged in
// the last 7 days. CommitCount is not filled in and stays zero.
func (g *Gateway) RepoMetrics(ctx context.Context) (RepoMetricsWindow, error) {
	issues, err := g.ListOpenIssues(ctx)
	if err != nil {
		return RepoMetricsWindow{}, err
	}
	openPRs, err := g.ListPRs(ctx, "open")
	if err != nil {
		return RepoMetricsWindow{}, err
	}
	closedPRs, err := g.ListPRs(ctx, "closed")
	if err != nil {
		return RepoMetricsWindow{}, err
	}
	since := g.now().AddDate(0, 0, -7)
	merged := 0
	for _, pr := range closedPRs {
		if pr.MergedAt != nil && pr.MergedAt.After(since) {
			merged++
		}
	}
	return RepoMetricsWindow{
		OpenIssues: len(issues),
		OpenPRs:    len(openPRs),
		MergedPRs:  merged,
	}, nil
}

func issueFromGH(i *gh.Issue) Issue {
	var labels []string
	for _, l := range i.Labels {
		labels = append(labels, l.GetName())
	}
	var assignees []string
	for _, a := range i.Assignees {
		assignees = append(assignees, a.GetLogin())
	}
	return Issue{
		Number:    i.GetNumber(),
		Title:     i.GetTitle(),
		Body:      i.GetBody(),
		Labels:    labels,
		Assignees: assignees,
		State:     i.GetState(),
		UpdatedAt: i.GetUpdatedAt().Time,
		URL:       i.GetHTMLURL(),
	}
}

func prFromGH(p *gh.PullRequest) PullRequest {
	pr := PullRequest{
		Number:    p.GetNumber(),
		Title:     p.GetTitle(),
		Body:      p.GetBody(),
		State:     p.GetState(),
		Draft:     p.GetDraft(),
		CreatedAt: p.GetCreatedAt().Time,
		URL:       p.GetHTMLURL(),
	}
	if p.Head != nil {
		pr.HeadRef = p.Head.GetRef()
	}
	if p.Base != nil {
		pr.BaseRef = p.Base.GetRef()
	}
	if p.MergedAt != nil {
		t := p.GetMergedAt().Time
		pr.MergedAt = &t
	}
	for _, r := range p.RequestedReviewers {
		pr.Reviewers = append(pr.Reviewers, r.GetLogin())
	}
	return pr
}

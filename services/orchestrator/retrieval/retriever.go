// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval selects the employee contexts, conversation memories,
// and aggregate attachment for one request, under a fixed token budget.
//
// The retriever never overflows its budget: inclusion is all-or-nothing per
// employee and per memory, so the model either sees a complete record or
// none of it. Store failures degrade a section to empty rather than failing
// the request; a partial context is strictly better than no answer.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/budget"
	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var retrievalTracer = otel.Tracer("beacon/orchestrator/retrieval")

// Store is the slice of hrstore the retriever reads.
type Store interface {
	ListEmployees(ctx context.Context) ([]datatypes.Employee, error)
	ListRatingsForEmployee(ctx context.Context, employeeID string) ([]datatypes.PerformanceRating, error)
	ListEnpsForEmployee(ctx context.Context, employeeID string) ([]datatypes.EnpsResponse, error)
	ListSummaries(ctx context.Context) ([]datatypes.ConversationSummary, error)
}

// Request carries everything one retrieval needs. Aggregates is the snapshot
// computed by the caller for this request; the retriever only decides whether
// it is attached to the prompt.
type Request struct {
	Message            string
	QueryType          datatypes.QueryType
	Budget             datatypes.TokenBudget
	SelectedEmployeeID string
	Aggregates         *datatypes.OrgAggregates
}

// Result is one retrieval outcome. Metrics is always populated, including
// the zero-result and degraded cases.
//
// Aggregates is what the prompt should render: usually the caller's snapshot
// unchanged, but a copy with a truncated department list when the full rollup
// would not fit the theme section. Verification always runs against the
// caller's snapshot, never this view.
type Result struct {
	Employees        []datatypes.EmployeeContext
	Memories         []datatypes.ConversationSummary
	AttachAggregates bool
	Aggregates       *datatypes.OrgAggregates
	Metrics          datatypes.RetrievalMetrics
}

// Retriever fills context sections from the store.
type Retriever struct {
	store  Store
	logger *slog.Logger
}

// NewRetriever returns a Retriever reading from store.
func NewRetriever(store Store, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, logger: logger}
}

// Match specificity tiers. Full name beats last name beats role/department.
const (
	matchFullName = 3
	matchLastName = 2
	matchRoleDept = 1
)

type candidate struct {
	employee datatypes.Employee
	score    int
	selected bool
}

// Retrieve selects context under req.Budget.
//
// # Description
//
// A UI-selected employee is always included first regardless of budget
// pressure; when its full history would not fit the employee section, the
// history lists are dropped and a compact identity-only context is included
// instead, so the usage invariant holds without ever emitting a half-rendered
// profile. Remaining candidates come from name/role mentions, ranked by
// specificity and recency, and are appended greedily while they fit whole.
// Memories are scored by keyword overlap and filled the same way.
func (r *Retriever) Retrieve(ctx context.Context, req *Request) *Result {
	ctx, span := retrievalTracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()
	start := time.Now()

	res := &Result{Metrics: datatypes.NewRetrievalMetrics(req.Budget)}

	// A selected employee's compact fallback may overrun the employee
	// section; the overdraft is paid for by shrinking the later sections so
	// the usage total stays within TotalContext.
	overdraft := r.fillEmployees(ctx, req, res)
	memoryBudget := req.Budget.MemoryContext - overdraft
	themeBudget := req.Budget.ThemeContext
	if memoryBudget < 0 {
		themeBudget += memoryBudget
		memoryBudget = 0
	}
	if themeBudget < 0 {
		themeBudget = 0
	}
	r.fillMemories(ctx, req, res, memoryBudget)
	r.attachAggregates(req, res, themeBudget)

	res.Metrics.Usage.TotalTokens = res.Metrics.Usage.EmployeeTokens +
		res.Metrics.Usage.MemoryTokens + res.Metrics.Usage.AggregatesTokens
	res.Metrics.Elapsed(start)

	span.SetAttributes(
		attribute.Int("employees_included", res.Metrics.EmployeesIncluded),
		attribute.Int("memories_included", res.Metrics.MemoriesIncluded),
		attribute.Bool("aggregates_attached", res.Metrics.AggregatesAttached),
		attribute.Int("total_tokens", res.Metrics.Usage.TotalTokens),
	)
	return res
}

func (r *Retriever) fillEmployees(ctx context.Context, req *Request, res *Result) (overdraft int) {
	directory, err := r.store.ListEmployees(ctx)
	if err != nil {
		r.logger.Error("employee retrieval degraded to empty section", "error", err)
		return 0
	}

	candidates := rankCandidates(req.Message, req.SelectedEmployeeID, directory)
	res.Metrics.EmployeesFound = len(candidates)

	byID := make(map[string]*datatypes.Employee, len(directory))
	for i := range directory {
		byID[directory[i].ID] = &directory[i]
	}

	remaining := req.Budget.EmployeeContext
	for _, c := range candidates {
		ec := r.buildContext(ctx, c.employee, byID)
		cost := estimateEmployeeTokens(ec)
		if cost > remaining {
			if !c.selected {
				continue // all-or-nothing: skip what does not fit whole
			}
			// Explicit selection always ships; fall back to the compact
			// identity-only view, and when even that overruns the section,
			// report the shortfall so the caller can charge it to the other
			// sections instead of overflowing the total.
			ec.Ratings = nil
			ec.EnpsHistory = nil
			cost = estimateEmployeeTokens(ec)
			if cost > remaining {
				overdraft += cost - remaining
			}
		}
		res.Employees = append(res.Employees, *ec)
		res.Metrics.EmployeesIncluded++
		res.Metrics.Usage.EmployeeTokens += cost
		remaining -= cost
	}
	return overdraft
}

func (r *Retriever) fillMemories(ctx context.Context, req *Request, res *Result, memoryBudget int) {
	summaries, err := r.store.ListSummaries(ctx)
	if err != nil {
		r.logger.Error("memory retrieval degraded to empty section", "error", err)
		return
	}

	scored := scoreMemories(req.Message, summaries)
	res.Metrics.MemoriesFound = len(scored)

	remaining := memoryBudget
	for _, m := range scored {
		cost := budget.EstimateTokens(m.Summary) + memoryOverheadTokens
		if cost > remaining {
			continue
		}
		res.Memories = append(res.Memories, m)
		res.Metrics.MemoriesIncluded++
		res.Metrics.Usage.MemoryTokens += cost
		remaining -= cost
	}
}

// attachAggregates applies the attachment rule: for aggregate and attrition
// queries whenever the rollup fits the theme section (a long department list
// is truncated rather than overflowing it), otherwise only when the employee
// section left slack and the message touches org-level vocabulary.
func (r *Retriever) attachAggregates(req *Request, res *Result, themeBudget int) {
	if req.Aggregates == nil {
		return
	}
	view := req.Aggregates
	cost := estimateAggregateTokens(view, len(view.Departments))

	switch req.QueryType {
	case datatypes.QueryAggregate, datatypes.QueryAttrition:
		if cost > themeBudget {
			base := estimateAggregateTokens(view, 0)
			if base > themeBudget {
				r.logger.Warn("aggregates dropped, theme section too small",
					"cost", base, "theme_budget", themeBudget)
				return
			}
			keep := (themeBudget - base) / perDepartmentTokens
			trimmed := *view
			trimmed.Departments = view.Departments[:keep]
			view = &trimmed
			cost = estimateAggregateTokens(view, keep)
			r.logger.Info("aggregate department list truncated to fit budget",
				"rendered", keep, "total", len(req.Aggregates.Departments))
		}
	default:
		slack := req.Budget.EmployeeContext - res.Metrics.Usage.EmployeeTokens
		if slack < cost || !mentionsOrgFacts(req.Message) {
			return
		}
	}
	res.AttachAggregates = true
	res.Aggregates = view
	res.Metrics.AggregatesAttached = true
	res.Metrics.Usage.AggregatesTokens = cost
}

// buildContext denormalizes one employee: manager resolved to a name, latest
// rating and trend precomputed, full history carried. History reads that
// fail leave those lists empty rather than dropping the employee.
func (r *Retriever) buildContext(ctx context.Context, emp datatypes.Employee, byID map[string]*datatypes.Employee) *datatypes.EmployeeContext {
	ec := &datatypes.EmployeeContext{Employee: emp}
	if emp.ManagerID != "" {
		if mgr, ok := byID[emp.ManagerID]; ok {
			ec.ManagerName = mgr.FullName()
		}
	}

	ratings, err := r.store.ListRatingsForEmployee(ctx, emp.ID)
	if err != nil {
		r.logger.Warn("rating history unavailable", "employee_id", emp.ID, "error", err)
	} else if len(ratings) > 0 {
		ec.Ratings = ratings
		ec.LatestRating = &ratings[0]
		ec.RatingTrend = deriveTrend(ratings)
	}

	enps, err := r.store.ListEnpsForEmployee(ctx, emp.ID)
	if err != nil {
		r.logger.Warn("enps history unavailable", "employee_id", emp.ID, "error", err)
	} else {
		ec.EnpsHistory = enps
	}
	return ec
}

// deriveTrend compares the two most recent scores. ratings is most recent
// first. Fewer than two ratings yields no trend.
func deriveTrend(ratings []datatypes.PerformanceRating) datatypes.RatingTrend {
	if len(ratings) < 2 {
		return ""
	}
	latest, previous := ratings[0].Score, ratings[1].Score
	switch {
	case latest > previous:
		return datatypes.TrendImproving
	case latest < previous:
		return datatypes.TrendDeclining
	default:
		return datatypes.TrendStable
	}
}

// rankCandidates orders the directory by mention specificity. The selected
// employee, when present, is pinned to position zero.
func rankCandidates(message, selectedID string, directory []datatypes.Employee) []candidate {
	lower := strings.ToLower(message)
	var out []candidate
	var pinned *candidate

	for i := range directory {
		emp := directory[i]
		if emp.ID == selectedID {
			pinned = &candidate{employee: emp, selected: true}
			continue
		}
		score := 0
		switch {
		case matchesPhrase(lower, strings.ToLower(emp.FullName())):
			score = matchFullName
		case matchesPhrase(lower, strings.ToLower(emp.LastName)):
			score = matchLastName
		case matchesPhrase(lower, strings.ToLower(emp.Role)) ||
			matchesPhrase(lower, strings.ToLower(emp.Department)):
			score = matchRoleDept
		}
		if score > 0 {
			out = append(out, candidate{employee: emp, score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].employee.UpdatedAt.After(out[j].employee.UpdatedAt)
	})

	if pinned != nil {
		out = append([]candidate{*pinned}, out...)
	}
	return out
}

// scoreMemories ranks stored summaries by keyword overlap with the message
// and drops zero-overlap candidates. Returned most relevant first, recency
// breaking ties.
func scoreMemories(message string, summaries []datatypes.ConversationSummary) []datatypes.ConversationSummary {
	words := keywords(message)
	if len(words) == 0 {
		return nil
	}

	type scoredSummary struct {
		summary datatypes.ConversationSummary
		score   int
	}
	var scored []scoredSummary
	for _, s := range summaries {
		text := strings.ToLower(s.Summary + " " + strings.Join(s.Topics, " "))
		n := 0
		for w := range words {
			if strings.Contains(text, w) {
				n++
			}
		}
		if n > 0 {
			scored = append(scored, scoredSummary{summary: s, score: n})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].summary.CreatedAt.After(scored[j].summary.CreatedAt)
	})

	out := make([]datatypes.ConversationSummary, len(scored))
	for i := range scored {
		out[i] = scored[i].summary
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"how": true, "who": true, "what": true, "with": true, "our": true,
	"have": true, "has": true, "this": true, "that": true, "many": true,
	"about": true, "does": true, "did": true, "you": true, "tell": true,
}

// keywords lowercases and splits the message, dropping short tokens and
// stopwords.
func keywords(message string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		out[w] = true
	}
	return out
}

var orgFactWords = []string{
	"employee", "team", "company", "department", "org", "people",
	"headcount", "rating", "enps", "tenure",
}

// mentionsOrgFacts gates the opportunistic aggregate attachment for
// non-aggregate queries.
func mentionsOrgFacts(message string) bool {
	lower := strings.ToLower(message)
	for _, w := range orgFactWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// matchesPhrase reports whether phrase occurs in text on word boundaries.
func matchesPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for from := 0; ; {
		idx := strings.Index(text[from:], phrase)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(phrase)
		leftOK := start == 0 || !isWordByte(text[start-1])
		rightOK := end == len(text) || !isWordByte(text[end])
		if leftOK && rightOK {
			return true
		}
		from = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// Token cost model. Estimates only need to be stable and monotone; budgets
// carry headroom for the difference from the real tokenizer.
const (
	employeeOverheadTokens  = 30
	perRatingTokens         = 12
	perEnpsTokens           = 6
	memoryOverheadTokens    = 5
	aggregateOverheadTokens = 60
	perDepartmentTokens     = 12
)

func estimateEmployeeTokens(ec *datatypes.EmployeeContext) int {
	identity := ec.Employee.FullName() + ec.Employee.Role + ec.Employee.Department + ec.ManagerName
	return employeeOverheadTokens +
		budget.EstimateTokens(identity) +
		perRatingTokens*len(ec.Ratings) +
		perEnpsTokens*len(ec.EnpsHistory)
}

func estimateAggregateTokens(agg *datatypes.OrgAggregates, departments int) int {
	n := aggregateOverheadTokens + perDepartmentTokens*departments
	if agg.Enps != nil {
		n += 25
	}
	if agg.AvgRating != nil {
		n += 30
	}
	return n
}

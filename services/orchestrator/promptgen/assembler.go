// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package promptgen renders the retrieved context into the system prompt
// sent to the model.
//
// Rendering is plain text with labeled sections, in a stable order, so the
// model's context window layout is deterministic for a given retrieval
// result. Sections with no content are omitted entirely.
package promptgen

import (
	"fmt"
	"strings"

	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
)

const promptHeader = `You are Beacon, a private HR assistant running entirely on this machine.
Answer using only the context below. When a figure appears in the ORGANIZATION
METRICS section, repeat it exactly; do not estimate or round differently.
If the context does not contain the answer, say so instead of guessing.`

// Assembler renders system prompts.
//
// Stateless; safe for concurrent use.
type Assembler struct{}

// NewAssembler returns an Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Input is everything one prompt render needs. Aggregates is rendered only
// when the retriever decided to attach it.
type Input struct {
	Profile          *datatypes.CompanyProfile
	Employees        []datatypes.EmployeeContext
	Memories         []datatypes.ConversationSummary
	Aggregates       *datatypes.OrgAggregates
	AttachAggregates bool
}

// Assemble renders the full system prompt.
func (a *Assembler) Assemble(in *Input) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)
	sb.WriteString("\n")

	if in.Profile != nil && in.Profile.Name != "" {
		sb.WriteString("\n## COMPANY\n")
		renderProfile(&sb, in.Profile)
	}
	if len(in.Employees) > 0 {
		sb.WriteString("\n## EMPLOYEES\n")
		for i := range in.Employees {
			renderEmployee(&sb, &in.Employees[i])
		}
	}
	if in.AttachAggregates && in.Aggregates != nil {
		sb.WriteString("\n## ORGANIZATION METRICS\n")
		renderAggregates(&sb, in.Aggregates)
	}
	if len(in.Memories) > 0 {
		sb.WriteString("\n## PAST CONVERSATIONS\n")
		for _, m := range in.Memories {
			fmt.Fprintf(&sb, "- %s\n", m.Summary)
		}
	}
	return sb.String()
}

func renderProfile(sb *strings.Builder, p *datatypes.CompanyProfile) {
	fmt.Fprintf(sb, "Name: %s\n", p.Name)
	if p.Industry != "" {
		fmt.Fprintf(sb, "Industry: %s\n", p.Industry)
	}
	if p.Headquarters != "" {
		fmt.Fprintf(sb, "Headquarters: %s\n", p.Headquarters)
	}
	if p.FoundedYear > 0 {
		fmt.Fprintf(sb, "Founded: %d\n", p.FoundedYear)
	}
	if p.Mission != "" {
		fmt.Fprintf(sb, "Mission: %s\n", p.Mission)
	}
}

func renderEmployee(sb *strings.Builder, ec *datatypes.EmployeeContext) {
	emp := &ec.Employee
	fmt.Fprintf(sb, "\n### %s\n", emp.FullName())
	fmt.Fprintf(sb, "Role: %s | Department: %s | Status: %s\n", emp.Role, emp.Department, emp.Status)
	if ec.ManagerName != "" {
		fmt.Fprintf(sb, "Manager: %s\n", ec.ManagerName)
	}
	if !emp.HireDate.IsZero() {
		fmt.Fprintf(sb, "Hired: %s\n", emp.HireDate.Format("2006-01-02"))
	}
	if emp.Status == datatypes.StatusTerminated && emp.TerminationDate != nil {
		fmt.Fprintf(sb, "Terminated: %s (%s)\n", emp.TerminationDate.Format("2006-01-02"), emp.TerminationType)
	}
	if ec.LatestRating != nil {
		fmt.Fprintf(sb, "Latest rating: %.1f (%s)", ec.LatestRating.Score, ec.LatestRating.Period)
		if ec.RatingTrend != "" {
			fmt.Fprintf(sb, ", trend %s", ec.RatingTrend)
		}
		sb.WriteString("\n")
	}
	if len(ec.Ratings) > 1 {
		sb.WriteString("Rating history:")
		for _, r := range ec.Ratings {
			fmt.Fprintf(sb, " %s=%.1f", r.Period, r.Score)
		}
		sb.WriteString("\n")
	}
	if len(ec.EnpsHistory) > 0 {
		sb.WriteString("eNPS responses:")
		for _, r := range ec.EnpsHistory {
			fmt.Fprintf(sb, " %d", r.Score)
		}
		sb.WriteString("\n")
	}
}

func renderAggregates(sb *strings.Builder, agg *datatypes.OrgAggregates) {
	fmt.Fprintf(sb, "Total headcount: %d (%d active, %d on leave, %d terminated)\n",
		agg.TotalHeadcount, agg.ActiveCount, agg.OnLeaveCount, agg.TerminatedCount)
	if len(agg.Departments) > 0 {
		sb.WriteString("Departments (active):")
		for _, d := range agg.Departments {
			fmt.Fprintf(sb, " %s=%d (%.1f%%)", d.Name, d.Count, d.Percent)
		}
		sb.WriteString("\n")
	}
	if agg.AvgRating != nil {
		fmt.Fprintf(sb, "Average rating: %.2f\n", *agg.AvgRating)
		d := agg.RatingDistribution
		fmt.Fprintf(sb, "Rating distribution: needs improvement=%d, developing=%d, meets=%d, exceeds=%d\n",
			d.NeedsImprovement, d.Developing, d.MeetsExpectations, d.Exceeds)
	}
	if agg.Enps != nil {
		fmt.Fprintf(sb, "eNPS: %.1f (%d promoters, %d passives, %d detractors of %d responses)\n",
			agg.Enps.Score, agg.Enps.Promoters, agg.Enps.Passives, agg.Enps.Detractors, agg.Enps.Total)
	}
	att := agg.Attrition
	fmt.Fprintf(sb, "Attrition YTD: %d terminations (%d voluntary, %d involuntary)",
		att.YTDTerminations, att.Voluntary, att.Involuntary)
	if att.YTDTerminations > 0 {
		fmt.Fprintf(sb, ", avg tenure at exit %.1f months", att.AvgTenureMonths)
	}
	sb.WriteString("\n")
	if att.TurnoverRate != nil {
		fmt.Fprintf(sb, "Annualized turnover rate: %.1f%%\n", *att.TurnoverRate)
	}
}

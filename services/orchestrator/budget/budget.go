// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package budget maps each QueryType to a fixed token allocation across the
// three context sections (employee profiles, themes/aggregates, memory).
//
// The table is its own component so budgets can be retuned without touching
// retrieval logic, and so tests and observability can inspect the allocation
// independently of what retrieval actually managed to fill.
package budget

import (
	"github.com/beaconhq/BeaconLocal/services/orchestrator/datatypes"
)

// budgetTable is the fixed QueryType -> TokenBudget mapping. Aggregate and
// attrition queries lean on the theme section (where the org rollup is
// rendered), individual queries give one employee's full profile most of the
// room, and comparisons split the employee section across the named people.
var budgetTable = map[datatypes.QueryType]datatypes.TokenBudget{
	datatypes.QueryAggregate:  {EmployeeContext: 400, ThemeContext: 800, MemoryContext: 300, TotalContext: 1500},
	datatypes.QueryList:       {EmployeeContext: 900, ThemeContext: 300, MemoryContext: 300, TotalContext: 1500},
	datatypes.QueryIndividual: {EmployeeContext: 1200, ThemeContext: 100, MemoryContext: 400, TotalContext: 1700},
	datatypes.QueryComparison: {EmployeeContext: 1000, ThemeContext: 300, MemoryContext: 300, TotalContext: 1600},
	datatypes.QueryAttrition:  {EmployeeContext: 400, ThemeContext: 800, MemoryContext: 300, TotalContext: 1500},
	datatypes.QueryGeneral:    {EmployeeContext: 300, ThemeContext: 200, MemoryContext: 500, TotalContext: 1000},
}

// For returns the fixed TokenBudget for a QueryType. Unknown types get the
// General allocation.
func For(queryType datatypes.QueryType) datatypes.TokenBudget {
	if b, ok := budgetTable[queryType]; ok {
		return b
	}
	return budgetTable[datatypes.QueryGeneral]
}

// Table returns a copy of the whole allocation table, for the admin/debug
// surface.
func Table() map[datatypes.QueryType]datatypes.TokenBudget {
	out := make(map[datatypes.QueryType]datatypes.TokenBudget, len(budgetTable))
	for k, v := range budgetTable {
		out[k] = v
	}
	return out
}

// EstimateTokens approximates the token cost of text as ceil(len/4).
//
// Four characters per token is the usual English-prose approximation; the
// retriever only needs estimates that are stable and monotone in text length,
// not tokenizer-exact, because budgets carry headroom.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

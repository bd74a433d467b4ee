// Test program to demonstrate compliance detection on known scenarios
// This shows prohibited language, missing clauses and deduplication working
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/clauseguard/internal/detect"
	"github.com/ppiankov/clauseguard/internal/model"
	"github.com/ppiankov/clauseguard/internal/pages"
)

type staticRules []model.PolicyRule

func (s staticRules) Load(ctx context.Context) ([]model.PolicyRule, error) {
	return s, nil
}

type scenario struct {
	name  string
	rules staticRules
	pages []string
}

func main() {
	fmt.Println("=== Compliance Detection Scenarios ===")
	fmt.Println()

	scenarios := []scenario{
		{
			name: "Indemnification language",
			rules: staticRules{{
				ID: "INST-INDEMNITY", Source: model.SourceInstitution, Category: "Indemnification",
				ProhibitedPatterns: []string{"indemnify", "hold harmless"},
				Risk:               model.RiskHigh, AcceptanceStatus: model.StatusRemove,
				References: []string{"Ala. Const. art. I sec. 14"},
			}},
			pages: []string{
				"1. Scope. The University will perform the research described in Exhibit A.",
				"2. Indemnification. Auburn University shall indemnify and hold harmless the Sponsor from any claims.",
			},
		},
		{
			name: "Missing insurance requirement",
			rules: staticRules{{
				ID: "GOV-INSURANCE", Source: model.SourceGovernment, Category: "Insurance",
				RequirementText: "Sponsor shall maintain liability insurance of at least $5,000,000 per occurrence",
				Risk:            model.RiskCritical, AcceptanceStatus: model.StatusConditional,
			}},
			pages: []string{
				"The Sponsor shall maintain general liability insurance of $1,000,000.",
			},
		},
		{
			name: "Two rules on one clause",
			rules: staticRules{
				{ID: "GOV-LAW", Source: model.SourceGovernment, Category: "Governing Law",
					ProhibitedPatterns: []string{"laws of the State of Delaware"},
					Risk:               model.RiskMedium, AcceptanceStatus: model.StatusRemove},
				{ID: "INST-LAW", Source: model.SourceInstitution, Category: "Governing Law",
					ProhibitedPatterns: []string{"laws of the State of Delaware"},
					Risk:               model.RiskMedium, AcceptanceStatus: model.StatusConditional},
			},
			pages: []string{
				"This Agreement is governed by the laws of the State of Delaware.",
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := false
	for _, sc := range scenarios {
		fmt.Printf("Scenario: %s\n", sc.name)
		fmt.Println(strings.Repeat("-", 60))

		text := pages.Join(sc.pages)
		detections, err := detect.NewDetector(sc.rules, nil, nil).RunDetections(ctx, text, detect.Options{})
		if err != nil {
			fmt.Printf("  Detection error: %v\n\n", err)
			failed = true
			continue
		}
		detections = pages.NewResolver(sc.pages).Resolve(detections)

		if len(detections) == 0 {
			fmt.Println("  ✓ No findings")
		}
		for _, d := range detections {
			fmt.Printf("  ⚠️  %s %s (%s)\n", d.Severity, d.Type, d.Category)
			if d.HasSpan() {
				fmt.Printf("     - Text: %q\n", d.ExactText)
				fmt.Printf("     - Span: bytes %d-%d", *d.StartIndex, *d.EndIndex)
				if d.PageNumber != nil {
					fmt.Printf(", page %d", *d.PageNumber)
				}
				fmt.Println()
			}
			fmt.Printf("     - Confidence: %.2f (match score %.2f)\n", d.Confidence, d.MatchScore)
			fmt.Printf("     - Rule: %s\n", d.RuleID)
		}
		fmt.Println()
	}

	fmt.Println("=== Scenarios Complete ===")
	if failed {
		os.Exit(1)
	}
}

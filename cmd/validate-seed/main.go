package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/subscription/seed"
)

/* validate-seed - Standalone CLI tool to validate a subscriptions seed file
 * Usage: go run cmd/validate-seed/main.go [subscriptions.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	seedFile := "subscriptions.yaml"
	if len(os.Args) > 1 {
		seedFile = os.Args[1]
	}

	fmt.Printf("Validating seed file: %s\n", seedFile)
	fmt.Println(strings.Repeat("-", 50))

	loader := seed.NewLoader()
	if err := loader.Load(seedFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	subs := loader.List()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d subscription(s):\n", len(subs))

	for i, s := range subs {
		fmt.Printf("\n%d. Subscription: %s\n", i+1, s.ID)
		fmt.Printf("   Owner:       %s\n", s.OwnerID)
		fmt.Printf("   URL:         %s\n", s.URL)
		fmt.Printf("   Event types: %s\n", strings.Join(event.Names(s.EventTypes), ", "))
		fmt.Printf("   Active:      %t\n", s.Active)
		if s.Description != "" {
			fmt.Printf("   Description: %s\n", s.Description)
		}
	}

	fmt.Printf("\n✓ All subscriptions are valid!\n")
}

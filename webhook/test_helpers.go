package webhook

import "github.com/stretchr/testify/mock"

// MatchDelivery creates a custom matcher for delivery arguments in mocks
func MatchDelivery(matcher func(Delivery) bool) interface{} {
	return mock.MatchedBy(matcher)
}

// MatchOutcome creates a custom matcher for outcome arguments in mocks
func MatchOutcome(matcher func(Outcome) bool) interface{} {
	return mock.MatchedBy(matcher)
}

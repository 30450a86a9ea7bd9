// Package events decouples the components that observe onboarding milestones
// from the ones that react to them.
//
// The payment flow emits a payment.completed DomainEvent; the registration
// pipeline registers a handler that produces onboarding tasks. Neither side
// imports the other.
package events

// Package service implements the onboarding operations performed by the
// registration pipeline: care-team assignment, the care-team chat room,
// welcome notifications and registration progress bookkeeping. It also
// adapts those operations to task executors.
package service

// Package domain contains the core business entities of the care
// coordination backend: user profiles and their roles, registration stages,
// care teams, chat rooms, and the per-user registration progress view.
// It has no dependencies on storage or transport.
package domain

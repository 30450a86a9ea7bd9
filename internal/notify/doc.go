// Package notify delivers user notifications over email, SMS and WhatsApp.
//
// Each channel has a Sender backed by a provider (AWS SES, AWS SNS, a
// Twilio-compatible WhatsApp API). Channels without provider credentials get
// an unconfigured sender whose errors wrap domain.ErrConfiguration, so the
// task pipeline records them as operator-visible configuration failures
// rather than ordinary transient errors.
package notify

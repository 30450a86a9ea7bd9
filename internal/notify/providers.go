package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// ProviderConfig selects and configures the provider of each channel.
type ProviderConfig struct {
	AWSRegion      string
	EmailFrom      string
	SMSEnabled     bool
	SMSSenderID    string
	WhatsApp       WhatsAppConfig
	WhatsAppClient *http.Client
}

// NewSenders builds the senders for every channel whose provider is
// configured. Channels left out of the map are reported as unconfigured by
// the Dispatcher.
func NewSenders(ctx context.Context, cfg ProviderConfig, logger *slog.Logger) (map[Channel]Sender, error) {
	senders := make(map[Channel]Sender)

	needAWS := cfg.EmailFrom != "" || cfg.SMSEnabled
	var awsCfg aws.Config
	if needAWS {
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
	}

	if cfg.EmailFrom != "" {
		s, err := NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.EmailFrom)
		if err != nil {
			return nil, err
		}
		senders[ChannelEmail] = s
	} else {
		logger.Warn("email provider not configured; email notifications will fail")
	}

	if cfg.SMSEnabled {
		s, err := NewSNSSender(sns.NewFromConfig(awsCfg), cfg.SMSSenderID)
		if err != nil {
			return nil, err
		}
		senders[ChannelSMS] = s
	} else {
		logger.Warn("sms provider not configured; sms notifications will fail")
	}

	if s, err := NewWhatsAppSender(cfg.WhatsApp, cfg.WhatsAppClient); err == nil {
		senders[ChannelWhatsApp] = s
	} else {
		logger.Warn("whatsapp provider not configured; whatsapp notifications will fail")
	}

	return senders, nil
}

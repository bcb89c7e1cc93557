package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

type postmarkSender struct {
	client *postmark.Client
	config Config
}

// NewPostmarkSender creates a Postmark-backed mail sender.
// Both tokens are required for runtime operation - this enforces explicit
// configuration rather than silent failures in production.
func NewPostmarkSender(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.ReplyToEmail != "" && !emailRegex.MatchString(cfg.ReplyToEmail) {
		return nil, fmt.Errorf("%w: ReplyToEmail must be a valid email address", ErrInvalidConfig)
	}

	return &postmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// MustNewPostmarkSender creates a Postmark sender that panics on invalid
// config, failing fast during initialization rather than letting a broken
// service start.
func MustNewPostmarkSender(cfg Config) Sender {
	sender, err := NewPostmarkSender(cfg)
	if err != nil {
		panic(err)
	}
	return sender
}

// Send implements Sender using Postmark's transactional API. Notification
// bodies are plain text, so only open tracking is enabled.
func (s *postmarkSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.config.SenderEmail,
		ReplyTo:    s.config.ReplyToEmail,
		To:         msg.Recipient(),
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		TextBody:   msg.Body,
		TrackOpens: true,
		Metadata:   msg.Metadata,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		sendErr := fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
		if isPermanentCode(resp.ErrorCode) {
			return errors.Join(ErrSendFailed, ErrPermanent, sendErr)
		}
		return errors.Join(ErrSendFailed, sendErr)
	}
	return nil
}

// isPermanentCode reports whether a Postmark API error code indicates that
// retrying the same message cannot succeed.
//
//	300 - invalid email request (malformed recipient or content)
//	406 - inactive recipient (hard bounce or spam complaint suppression)
func isPermanentCode(code int64) bool {
	switch code {
	case 300, 406:
		return true
	}
	return false
}

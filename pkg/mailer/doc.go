// Package mailer abstracts the outbound mail transport behind the Sender
// interface.
//
// Two implementations are provided: a Postmark-backed sender for production
// and DevSender, which writes messages to disk for local development.
//
// Transport failures carry a retryability signal: errors wrapped with
// ErrPermanent (hard bounces, suppressed recipients) cannot succeed on a
// retry, and callers should finalize the message as failed instead of
// rescheduling it. Check with IsPermanent.
package mailer

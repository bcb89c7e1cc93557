// Package notification implements the lifecycle of outbound email
// notifications: creation from an active template, scheduling, delivery
// bookkeeping and explicit retry.
//
// # Lifecycle
//
// A notification moves through four states:
//
//   - draft: rendered but not queued
//   - scheduled: queued for delivery, due now or at a future instant
//   - sent: terminal success
//   - failed: delivery attempts exhausted, re-activatable via retry
//
// The only permitted transitions are draft→scheduled, scheduled→sent,
// scheduled→failed and failed→scheduled. Storage implementations enforce
// the graph with atomic verify-status-then-update operations, so concurrent
// workers observe a conflict error instead of silently overwriting state.
//
// # Basic Usage
//
//	svc, err := notification.NewService(storage, templates, events, dispatcher)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	n, err := svc.Create(ctx, notification.CreateParams{
//	    Type:           notification.TypePaymentReminder,
//	    RecipientEmail: "parent@example.com",
//	    RecipientName:  "Marie Dupont",
//	    Variables: map[string]string{
//	        "student_name": "Jean Dupont",
//	        "amount":       "500",
//	        "due_date":     "2025-02-01",
//	        "tranche":      "1",
//	    },
//	})
//
// The subject and body are rendered from the active template for the type at
// creation time; later template edits never change an existing notification.
// Delivery itself happens asynchronously through the Dispatcher, typically
// backed by the delayed task queue in pkg/queue.
package notification

// Package template provides the template store and the variable substitution
// used to render notification subjects and bodies.
//
// A Template binds subject/body text with {{name}} placeholder tokens to one
// notification type. Resolution is type-scoped and activity-gated: exactly one
// active template may exist per type, enforced by the Storage implementations,
// so FindActiveByType is deterministic and never relies on query order.
//
// # Usage
//
//	store := template.NewMemoryStorage()
//	_ = template.Seed(ctx, store)
//
//	tpl, err := store.FindActiveByType(ctx, "payment_reminder")
//	if err != nil {
//	    // errors.Is(err, template.ErrNotFound)
//	}
//
//	subject, body := template.RenderTemplate(*tpl, map[string]string{
//	    "recipient_name": "Marie Dupont",
//	    "student_name":   "Jean Dupont",
//	})
//
// Rendering replaces placeholders bound to present keys and strips unknown
// tokens; it is a single pass and idempotent on already-rendered text.
package template

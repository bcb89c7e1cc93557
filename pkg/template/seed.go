package template

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// DefaultTemplates returns the stock templates shipped with the service, one
// active template per notification type.
func DefaultTemplates() []Template {
	return []Template{
		{
			ID:      uuid.New(),
			Name:    "Rappel de paiement - Tranche 1",
			Type:    "payment_reminder",
			Subject: "Rappel de paiement - Tranche {{tranche}} - {{student_name}}",
			Body: "Bonjour {{recipient_name}},\n\n" +
				"Nous vous rappelons que le paiement de la tranche {{tranche}} des frais de scolarité pour {{student_name}} est dû.\n\n" +
				"Montant à payer : {{amount}} €\n" +
				"Date d'échéance : {{due_date}}\n\n" +
				"Merci de procéder au règlement dans les plus brefs délais.\n\n" +
				"Cordialement,\nL'équipe administrative",
			Variables: []string{"recipient_name", "student_name", "amount", "due_date", "tranche"},
			IsActive:  true,
		},
		{
			ID:      uuid.New(),
			Name:    "Information urgente",
			Type:    "urgent_info",
			Subject: "Information urgente concernant {{student_name}}",
			Body: "Bonjour {{recipient_name}},\n\n" +
				"Nous vous contactons concernant une information urgente relative à {{student_name}}.\n\n" +
				"Type d'urgence : {{urgency_type}}\n\n" +
				"Message :\n{{message}}\n\n" +
				"Merci de prendre contact avec nous au plus vite.\n\n" +
				"Cordialement,\nL'équipe administrative",
			Variables: []string{"recipient_name", "student_name", "urgency_type", "message"},
			IsActive:  true,
		},
		{
			ID:      uuid.New(),
			Name:    "Notification générale",
			Type:    "general",
			Subject: "{{subject}}",
			Body: "Bonjour {{recipient_name}},\n\n" +
				"{{message}}\n\n" +
				"Cordialement,\nL'équipe administrative",
			Variables: []string{"recipient_name", "subject", "message"},
			IsActive:  true,
		},
	}
}

// Seed installs the default templates into storage. Types that already have
// an active template are left untouched.
func Seed(ctx context.Context, storage Storage) error {
	for _, tpl := range DefaultTemplates() {
		if _, err := storage.FindActiveByType(ctx, tpl.Type); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := storage.Create(ctx, tpl); err != nil {
			return err
		}
	}
	return nil
}

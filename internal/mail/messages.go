package mail

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/wardenhq/warden/internal/render"
)

func SendGDPRVerificationLink(sender MailSender, toEmail string, verifyURL string) error {
	params := fiber.Map{
		"verifyURL":   verifyURL,
		"expireHours": 24,
	}
	body, err := render.RenderHTML("mail/gdpr-verify-link", params)
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "Confirm your data protection request",
		Body:    body,
		IsHTML:  true,
	})
}

func SendGDPRVerificationCode(sender MailSender, toEmail string, code string) error {
	params := fiber.Map{
		"code":          code,
		"expireMinutes": 10,
	}
	body, err := render.RenderHTML("mail/gdpr-verify-code", params)
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: fmt.Sprintf("%s is your verification code", code),
		Body:    body,
		IsHTML:  true,
	})
}

func SendGDPRStatusUpdate(sender MailSender, toEmail string, requestID, right, status, notes string) error {
	params := fiber.Map{
		"requestId": requestID,
		"right":     right,
		"status":    status,
		"notes":     notes,
	}
	body, err := render.RenderHTML("mail/gdpr-status-update", params)
	if err != nil {
		return err
	}
	return sender.Send(&Message{
		To:      []string{toEmail},
		Subject: "Update on your data protection request",
		Body:    body,
		IsHTML:  true,
	})
}

package mail

import "log/slog"

type Message struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	IsHTML      bool
	Embeds      map[string]string
	Attachments []string
}

type MailSender interface {
	Send(message *Message) error
}

// LogSender is the development backend: it logs the message instead of
// delivering it.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(message *Message) error {
	slog.Info("mail (not sent)", "to", message.To, "subject", message.Subject)
	slog.Debug("mail body", "body", message.Body)
	return nil
}

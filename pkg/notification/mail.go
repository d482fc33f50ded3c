package notification

import (
	"fmt"
	"net/smtp"

	"github.com/raykavin/signalsense/pkg/core"
	log "github.com/sirupsen/logrus"
)

// Mail sends prediction notifications by email
type Mail struct {
	auth              smtp.Auth
	smtpServerPort    int
	smtpServerAddress string
	to                string
	from              string
}

var _ Notifier = Mail{}

// MailParams contains all parameters needed to initialize a Mail instance
type MailParams struct {
	SMTPServerPort    int
	SMTPServerAddress string
	To                string
	From              string
	Password          string
}

func NewMail(params MailParams) Mail {
	return Mail{
		from:              params.From,
		to:                params.To,
		smtpServerPort:    params.SMTPServerPort,
		smtpServerAddress: params.SMTPServerAddress,
		auth: smtp.PlainAuth(
			"",
			params.From,
			params.Password,
			params.SMTPServerAddress,
		),
	}
}

// Notify sends one message with the given subject and body
func (m Mail) Notify(subject, body string) {
	serverAddress := fmt.Sprintf("%s:%d", m.smtpServerAddress, m.smtpServerPort)

	err := smtp.SendMail(serverAddress, m.auth, m.from, []string{m.to}, mailMessage(m.from, m.to, subject, body))
	if err != nil {
		log.WithError(err).Error("notification/mail: failed to send email")
	}
}

func (m Mail) OnPrediction(entry core.HistoryEntry) {
	body := fmt.Sprintf("Confidence: %s%%\n", core.FormatPercent(entry.Confidence))
	if hint := entry.Signal.Hint(); hint != "" {
		body += hint + "\n"
	}
	if entry.Explanation != "" {
		body += "\n" + entry.Explanation + "\n"
	}

	m.Notify(fmt.Sprintf("SIGNAL - %s", entry.Label()), body)
}

func (m Mail) OnError(err error) {
	m.Notify("ERROR", err.Error())
}

func mailMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf("To: <%s>\r\nFrom: \"SignalSense\" <%s>\r\nSubject: %s\r\n\r\n%s", to, from, subject, body))
}

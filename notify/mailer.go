package notify

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"log"

	"campusevents/mq"

	"gopkg.in/gomail.v2"
)

var ErrMailNotConfigured = errors.New("email is not configured: SMTP_HOST is empty")

const qrAttachment = "ticket-qr.png"

var ticketTmpl = template.Must(template.New("ticket").Parse(`<p>Hi {{.ParticipantName}},</p>
<p>You are registered for <strong>{{.EventTitle}}</strong>.</p>
<p>Date: {{.EventDate.Format "Mon, 02 Jan 2006 15:04 MST"}}<br>
Location: {{.Location}}<br>
Ticket ID: <code>{{.TicketID}}</code></p>
{{if .HasQR}}<p><img src="cid:` + qrAttachment + `" alt="Ticket QR code"></p>{{end}}
<p>Show this ticket at the entrance.</p>`))

type Mailer struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func (m *Mailer) render(t mq.TicketIssued) (string, error) {
	var buf bytes.Buffer
	err := ticketTmpl.Execute(&buf, struct {
		mq.TicketIssued
		HasQR bool
	}{t, len(t.QRCode) > 0})
	return buf.String(), err
}

// SendTicket emails the ticket to its holder.
func (m *Mailer) SendTicket(t mq.TicketIssued) error {
	if m.Host == "" {
		return ErrMailNotConfigured
	}
	if t.To == "" {
		return errors.New("ticket email has no recipient")
	}

	body, err := m.render(t)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", t.To)
	msg.SetHeader("Subject", "Your ticket for "+t.EventTitle)
	msg.SetBody("text/html", body)
	if len(t.QRCode) > 0 {
		qr := t.QRCode
		msg.Embed(qrAttachment, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(qr)
			return err
		}))
	}

	return gomail.NewDialer(m.Host, m.Port, m.User, m.Pass).DialAndSend(msg)
}

// Handle is the bus subscriber for ticket-issued messages. A missing SMTP
// configuration is reported once per message and never retried.
func (m *Mailer) Handle(_ context.Context, msg mq.Message) error {
	t, ok := msg.Payload.(mq.TicketIssued)
	if !ok {
		return nil
	}
	err := m.SendTicket(t)
	if errors.Is(err, ErrMailNotConfigured) {
		log.Printf("Ticket email for %s not sent: %v", t.TicketID, err)
		return nil
	}
	return err
}

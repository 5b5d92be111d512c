package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"

	mail "github.com/go-mail/mail/v2"
)

// smtpSettings are read per send so they pick up values loaded from
// .env after package init.
type smtpSettings struct {
	host          string
	port          int
	user          string
	pass          string
	from          string
	skipTLSVerify bool
}

func loadSMTPSettings() smtpSettings {
	port, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if port == 0 {
		port = 587
	}
	return smtpSettings{
		host:          os.Getenv("SMTP_HOST"),
		port:          port,
		user:          os.Getenv("SMTP_USER"),
		pass:          os.Getenv("SMTP_PASS"),
		from:          os.Getenv("SMTP_FROM"), // e.g. "Call Review <no-reply@your.org>"
		skipTLSVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1",
	}
}

// SendMail delivers one HTML mail. Callers treat failures as
// best-effort; notification delivery never blocks a domain operation.
func SendMail(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	smtp := loadSMTPSettings()
	if smtp.host == "" || smtp.from == "" {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	m := mail.NewMessage()
	m.SetHeader("From", smtp.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	d := mail.NewDialer(smtp.host, smtp.port, smtp.user, smtp.pass)

	// Mandatory STARTTLS on port 587 (Gmail/Office365 style setups).
	d.StartTLSPolicy = mail.MandatoryStartTLS

	d.TLSConfig = &tls.Config{
		ServerName:         smtp.host,
		InsecureSkipVerify: smtp.skipTLSVerify, // dev only: set SMTP_SKIP_TLS_VERIFY=1 to skip cert checks
	}

	return d.DialAndSend(m)
}

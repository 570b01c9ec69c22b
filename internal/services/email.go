package services

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/teamforge/backend/internal/config"
	"github.com/teamforge/backend/internal/models"
	"github.com/teamforge/backend/pkg/logger"
	"gorm.io/gorm"
)

// Mailer dispatches invitation emails. The invitation saga depends on
// observing dispatch failures, so implementations must return them.
type Mailer interface {
	SendTeamInvitation(to, teamName, role, inviteURL string) error
}

// SMTPMailer sends email over SMTP. Delivery settings come from the
// system_configs table, falling back to the file configuration.
type SMTPMailer struct {
	db       *gorm.DB
	fallback *config.SMTPConfig
}

type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

func NewSMTPMailer(db *gorm.DB, fallback *config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{db: db, fallback: fallback}
}

func (s *SMTPMailer) GetConfig() *EmailConfig {
	cfg := &EmailConfig{}
	if s.fallback != nil {
		cfg.Enabled = s.fallback.Enabled
		cfg.Host = s.fallback.Host
		cfg.Port = s.fallback.Port
		cfg.Username = s.fallback.Username
		cfg.Password = s.fallback.Password
		cfg.From = s.fallback.From
		cfg.UseTLS = s.fallback.UseTLS
	}

	var configs []models.SystemConfig
	s.db.Where("`group` = ?", "email").Find(&configs)

	for _, c := range configs {
		if c.Value == "" {
			continue
		}
		switch c.Key {
		case "email_enabled":
			cfg.Enabled = c.Value == "true"
		case "email_host":
			cfg.Host = c.Value
		case "email_port":
			if port, err := strconv.Atoi(c.Value); err == nil {
				cfg.Port = port
			}
		case "email_username":
			cfg.Username = c.Value
		case "email_password":
			cfg.Password = c.Value
		case "email_from":
			cfg.From = c.Value
		case "email_use_tls":
			cfg.UseTLS = c.Value == "true"
		}
	}

	if cfg.Port == 0 {
		cfg.Port = 587
	}

	return cfg
}

// SendTeamInvitation emails a membership offer with the redemption link.
func (s *SMTPMailer) SendTeamInvitation(to, teamName, role, inviteURL string) error {
	cfg := s.GetConfig()
	if !cfg.Enabled || cfg.Host == "" {
		return fmt.Errorf("email delivery is not configured")
	}

	subject := fmt.Sprintf("You've been invited to join %s", teamName)
	body := s.buildInvitationBody(teamName, role, inviteURL)

	return s.sendEmail(cfg, []string{to}, subject, body)
}

func (s *SMTPMailer) buildInvitationBody(teamName, role, inviteURL string) string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>Join %s</h2>", teamName))
	sb.WriteString(fmt.Sprintf("<p>You have been invited to join <strong>%s</strong> as a <strong>%s</strong>.</p>", teamName, role))
	sb.WriteString(fmt.Sprintf("<p><a href=\"%s\" style=\"display: inline-block; padding: 10px 20px; background: #111; color: #fff; border-radius: 4px; text-decoration: none;\">Accept invitation</a></p>", inviteURL))
	sb.WriteString("<p style=\"color: #888; font-size: 12px;\">If you weren't expecting this invitation, you can ignore this email.</p>")
	sb.WriteString("</body></html>")

	return sb.String()
}

func (s *SMTPMailer) sendEmail(cfg *EmailConfig, to []string, subject, body string) error {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	headers := make(map[string]string)
	headers["From"] = from
	headers["To"] = strings.Join(to, ",")
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var message strings.Builder
	for k, v := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	var err error
	if cfg.UseTLS {
		err = s.sendEmailTLS(cfg, addr, auth, from, to, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, to, []byte(message.String()))
	}

	if err != nil {
		logger.Warn().Err(err).Strs("to", to).Msg("failed to send email")
		return err
	}

	logger.Infof("[Email] Sent invitation to %v", to)
	return nil
}

func (s *SMTPMailer) sendEmailTLS(cfg *EmailConfig, addr string, auth smtp.Auth, from string, to []string, message string) error {
	tlsConfig := &tls.Config{
		ServerName: cfg.Host,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}

	_, err = w.Write([]byte(message))
	if err != nil {
		return err
	}

	return w.Close()
}

package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"marketpulse/models"

	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// EmailConfig holds SMTP transport settings
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailNotifier sends triggered-alert emails over SMTP. With no host
// configured it degrades to a no-op that logs the would-be delivery.
type EmailNotifier struct {
	cfg    EmailConfig
	db     *gorm.DB
	dialer *gomail.Dialer
}

// NewEmailNotifier creates an email notifier. The database is used to
// resolve the recipient address from the alert's owner.
func NewEmailNotifier(cfg EmailConfig, db *gorm.DB) *EmailNotifier {
	n := &EmailNotifier{cfg: cfg, db: db}
	if cfg.Host != "" {
		n.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return n
}

// SendAlertTriggered emails the alert owner about the trigger event. Exactly
// one attempt is made per call; retries are the caller's decision.
func (n *EmailNotifier) SendAlertTriggered(ctx context.Context, alert models.Alert, quote *models.MarketQuote) error {
	email, err := n.ownerEmail(ctx, alert.UserID)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("[MarketPulse] Alert triggered: %s %s %s %.2f",
		alert.Symbol, alert.AlertType, alert.Condition, alert.TargetValue)
	body := buildAlertBody(alert, quote)

	if n.dialer == nil {
		log.Printf("notify: SMTP not configured, skipping email to %s (%s)", email, subject)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.cfg.From)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send alert email to %s: %w", email, err)
	}
	return nil
}

// ownerEmail resolves the recipient address for a user
func (n *EmailNotifier) ownerEmail(ctx context.Context, userID uint) (string, error) {
	if n.db == nil {
		return "", fmt.Errorf("no user store configured")
	}
	var user models.User
	if err := n.db.WithContext(ctx).Select("email").First(&user, userID).Error; err != nil {
		return "", fmt.Errorf("lookup email for user %d: %w", userID, err)
	}
	return user.Email, nil
}

func buildAlertBody(alert models.Alert, quote *models.MarketQuote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your alert on %s has triggered.\n\n", alert.Symbol)
	fmt.Fprintf(&b, "Condition: %s %s %.2f\n", alert.AlertType, alert.Condition, alert.TargetValue)
	fmt.Fprintf(&b, "Observed value: %.2f\n", alert.CurrentValue)
	if quote != nil {
		fmt.Fprintf(&b, "Last price: %.2f (%+.2f, %+.2f%%)\n", quote.Price, quote.Change, quote.ChangePercent)
	}
	if alert.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", alert.Message)
	}
	return b.String()
}

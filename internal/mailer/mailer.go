// Package mailer предоставляет клиент для отправки почтовых уведомлений магазина.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/anphashop/shop-system/internal/model"
)

// Config содержит параметры подключения к SMTP-серверу.
type Config struct {
	Host     string
	Port     string
	User     string
	Pass     string
	FromAddr string
	FromName string
	StoreURL string
}

// Client инкапсулирует отправку писем через SMTP.
type Client struct {
	cfg Config
}

// NewClient создаёт почтовый клиент с указанными параметрами подключения.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) send(to, subject, body string) error {
	if c == nil || c.cfg.Host == "" || c.cfg.Port == "" {
		return fmt.Errorf("mailer not configured")
	}

	msg := []byte(fmt.Sprintf("From: %s <%s>\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n"+
		"%s",
		c.cfg.FromName, c.cfg.FromAddr, to, subject, body))

	auth := smtp.PlainAuth("", c.cfg.User, c.cfg.Pass, c.cfg.Host)

	if err := smtp.SendMail(c.cfg.Host+":"+c.cfg.Port, auth, c.cfg.FromAddr, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	return nil
}

// SendOrderConfirmation отправляет покупателю подтверждение оформленного заказа.
func (c *Client) SendOrderConfirmation(to string, order *model.Order) error {
	subject := fmt.Sprintf("Order %s received", order.Code)

	var b strings.Builder
	fmt.Fprintf(&b, "We received your order %s.\n\n", order.Code)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "  %s x%d\n", item.Title, item.Quantity)
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", order.Total.StringFixed(2))
	if order.Discount.IsPositive() {
		fmt.Fprintf(&b, "Discount applied: %s\n", order.Discount.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nYou will get your accounts as soon as the order is processed.\n%s\n", c.cfg.StoreURL)

	return c.send(to, subject, b.String())
}

// SendDelivery отправляет покупателю данные выданных аккаунтов.
func (c *Client) SendDelivery(to string, order *model.Order, message string) error {
	subject := fmt.Sprintf("Order %s delivered", order.Code)

	var b strings.Builder
	fmt.Fprintf(&b, "Your order %s has been delivered.\n\n", order.Code)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "%s x%d:\n", item.Title, item.Quantity)
		for _, acc := range item.Accounts {
			fmt.Fprintf(&b, "  %s", acc.Payload)
			if acc.Expire != nil {
				fmt.Fprintf(&b, " (valid until %s)", acc.Expire.Format("2006-01-02 15:04"))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if message != "" {
		fmt.Fprintf(&b, "%s\n\n", message)
	}
	fmt.Fprintf(&b, "Thank you for shopping with us.\n%s\n", c.cfg.StoreURL)

	return c.send(to, subject, b.String())
}

// SendShortageAlert отправляет администратору уведомление о нехватке аккаунтов на складе.
func (c *Client) SendShortageAlert(to, orderCode, productTitle string, requested, available int) error {
	subject := fmt.Sprintf("Stock shortage: %s", productTitle)
	body := fmt.Sprintf(
		"Order %s cannot be delivered.\n\nProduct %q: requested %d, available %d.\n\nRestock and trigger delivery again.\n",
		orderCode, productTitle, requested, available)
	return c.send(to, subject, body)
}

// SendExpiryWarning предупреждает покупателя о скором истечении срока аккаунта.
func (c *Client) SendExpiryWarning(to, productTitle string, expire string) error {
	subject := fmt.Sprintf("Your %s account expires soon", productTitle)
	body := fmt.Sprintf(
		"Your %s account expires at %s.\n\nRenew it in time to keep access:\n%s\n",
		productTitle, expire, c.cfg.StoreURL)
	return c.send(to, subject, body)
}

// SendTest отправляет проверочное письмо для диагностики SMTP-настроек.
func (c *Client) SendTest(to string) error {
	return c.send(to, "Anpha Shop test email", "SMTP configuration works.\n")
}

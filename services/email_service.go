package services

import (
	"fmt"
	"time"

	"rentflow/config"

	"gopkg.in/gomail.v2"
)

// EmailService предоставляет методы для отправки email
type EmailService struct {
	dialer *gomail.Dialer
	from   string
	config *config.Config
}

// NewEmailService создает новый экземпляр EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		dialer: dialer,
		from:   cfg.SMTP.From,
		config: cfg,
	}
}

// SendEmail отправляет email
func (s *EmailService) SendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("ошибка отправки email: %v", err)
	}

	return nil
}

// SendLeaseCreatedNotification отправляет уведомление о создании договора аренды
func (s *EmailService) SendLeaseCreatedNotification(to, address string, monthlyRent float64) error {
	subject := "Новый договор аренды"
	body := fmt.Sprintf(`
		<h2>Новый договор аренды</h2>
		<p>Для вас подготовлен договор аренды.</p>
		<p>Адрес: %s</p>
		<p>Ежемесячная аренда: %.2f USDC</p>
		<p>Дата: %s</p>
		<p>Пожалуйста, подпишите договор в личном кабинете.</p>
	`, address, monthlyRent, time.Now().Format("02.01.2006 15:04:05"))

	return s.SendEmail(to, subject, body)
}

// SendLeaseSignedNotification отправляет уведомление о подписании договора второй стороной
func (s *EmailService) SendLeaseSignedNotification(to string, leaseID uint) error {
	subject := "Договор аренды подписан"
	body := fmt.Sprintf(`
		<h2>Договор аренды подписан</h2>
		<p>Договор #%d подписан обеими сторонами.</p>
		<p>Для активации договора необходимо оплатить страховой депозит и первый месяц аренды.</p>
		<p>Дата: %s</p>
	`, leaseID, time.Now().Format("02.01.2006 15:04:05"))

	return s.SendEmail(to, subject, body)
}

// SendLeaseActivatedNotification отправляет уведомление об активации договора
func (s *EmailService) SendLeaseActivatedNotification(email string, leaseID uint) error {
	// Формируем тему письма
	subject := "Поздравляем! Ваш договор аренды активирован"

	// Формируем тело письма
	body := fmt.Sprintf(`
		<h2>Поздравляем!</h2>
		<p>Договор аренды #%d активирован: обе подписи получены, обязательные платежи завершены.</p>
		<p>Спасибо, что выбрали наш сервис!</p>
		<p>Если у вас возникнут вопросы, пожалуйста, свяжитесь с нами.</p>
		<p>С уважением,<br>Команда RentFlow</p>
	`, leaseID)

	// Создаем сообщение
	message := gomail.NewMessage()
	message.SetHeader("From", s.from)
	message.SetHeader("To", email)
	message.SetHeader("Subject", subject)
	message.SetBody("text/html", body)

	// Отправляем письмо
	if err := s.dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("ошибка при отправке уведомления об активации договора: %v", err)
	}

	return nil
}

// SendPaymentNotification отправляет уведомление о результате платежа
func (s *EmailService) SendPaymentNotification(to string, obligationID uint, amount float64, outcome string) error {
	subject := "Уведомление о платеже"
	body := fmt.Sprintf(`
		<h2>Уведомление о платеже</h2>
		<p>Обязательство: #%d</p>
		<p>Сумма: %.2f USDC</p>
		<p>Результат: %s</p>
		<p>Дата: %s</p>
	`, obligationID, amount, outcome, time.Now().Format("02.01.2006 15:04:05"))

	return s.SendEmail(to, subject, body)
}

// SendLeaseTerminatedNotification отправляет уведомление о расторжении договора
func (s *EmailService) SendLeaseTerminatedNotification(to string, leaseID uint) error {
	subject := "Договор аренды расторгнут"
	body := fmt.Sprintf(`
		<h2>Договор аренды расторгнут</h2>
		<p>Договор #%d был расторгнут.</p>
		<p>Дата: %s</p>
		<p>Если у вас возникнут вопросы, пожалуйста, свяжитесь с нами.</p>
	`, leaseID, time.Now().Format("02.01.2006 15:04:05"))

	return s.SendEmail(to, subject, body)
}

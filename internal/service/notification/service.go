package notification

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
)

// Sender delivers follow-up reminders.
type Sender interface {
	SendFollowUpReminder(visit *model.FollowUpVisit) error
}

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	ClinicInbox string
}

// Service emails follow-up reminders to the clinic inbox. Patient
// contact details live outside this service, so the clinic staff
// relay the reminder.
type Service struct {
	dialer *gomail.Dialer
	from   string
	inbox  string
}

func NewService(cfg Config) *Service {
	return &Service{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		inbox:  cfg.ClinicInbox,
	}
}

func (s *Service) SendFollowUpReminder(visit *model.FollowUpVisit) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.inbox)
	m.SetHeader("Subject", fmt.Sprintf("Follow-up visit due %s", visit.VisitDate.Format("2006-01-02")))
	m.SetBody("text/plain", fmt.Sprintf(
		"Follow-up visit %s (%s) is due on %s for patient record %s.",
		visit.ID, visit.Description, visit.VisitDate.Format("2006-01-02"), visit.PatientRecordID,
	))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send follow-up reminder: %w", err)
	}
	return nil
}

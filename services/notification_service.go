package services

import (
	"fmt"
	"log"
	"time"

	"call-review-api/config"
	"call-review-api/models"

	"gorm.io/gorm"
)

// NotificationService writes in-app notifications and sends mail.
// Everything here is fire-and-forget: a notification failure must never
// fail or roll back the distribution or submission that triggered it.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// NotifyAssigned tells reviewers about new assignments after the
// distribution transaction has committed.
func (s *NotificationService) NotifyAssigned(reviewerIDs []int, callTitle string) {
	if len(reviewerIDs) == 0 {
		return
	}
	go func() {
		for _, reviewerID := range reviewerIDs {
			s.deliver(reviewerID, "New review assignment",
				fmt.Sprintf("You have been assigned a proposal to evaluate in the call \"%s\".", callTitle))
		}
	}()
}

// NotifySubmitted confirms a completed evaluation to the reviewer.
func (s *NotificationService) NotifySubmitted(reviewerID int, blindCode string) {
	go s.deliver(reviewerID, "Evaluation submitted",
		fmt.Sprintf("Your evaluation for proposal %s was recorded.", blindCode))
}

func (s *NotificationService) deliver(userID int, title, message string) {
	notification := models.Notification{
		UserID:   uint(userID),
		Title:    title,
		Message:  message,
		Type:     "info",
		CreateAt: time.Now(),
	}
	if err := s.db.Create(&notification).Error; err != nil {
		log.Printf("Warning: failed to store notification for user %d: %v", userID, err)
	}

	var user models.User
	if err := s.db.Select("email").Where("user_id = ? AND delete_at IS NULL", userID).
		First(&user).Error; err != nil {
		return
	}
	if err := config.SendMail([]string{user.Email}, title, "<p>"+message+"</p>"); err != nil {
		log.Printf("Warning: failed to send notification mail to user %d: %v", userID, err)
	}
}

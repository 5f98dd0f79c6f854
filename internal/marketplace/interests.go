package marketplace

import (
	"context"
	"fmt"

	"campusmarket/internal/apperr"
	"campusmarket/internal/notify"
	"campusmarket/models"
)

const welcomeMessage = "Chat started. You can now discuss the details of this request."

// ExpressInterest records a pending interest of the caller's provider profile in a request.
func (s *Service) ExpressInterest(ctx context.Context, userID, requestID int) (*models.Interest, error) {
	provider, err := s.store.GetProviderByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.AllowInterests {
		return nil, apperr.Validation("Request does not accept interests")
	}
	if req.Status != models.RequestOpen {
		return nil, apperr.InvalidState("Request is no longer open")
	}

	_, err = s.store.GetInterestByProviderAndRequest(ctx, provider.ID, req.ID)
	switch {
	case err == nil:
		return nil, apperr.Conflict("Interest already exists")
	case !apperr.Is(err, apperr.KindNotFound):
		return nil, err
	}

	interest := &models.Interest{RequestID: req.ID, ProviderID: provider.ID, Status: models.StatusPending}
	if err := s.store.CreateInterest(ctx, interest); err != nil {
		return nil, err
	}

	s.notify(ctx, req.UserID, notify.Note{
		Type:            models.NotificationInterestReceived,
		Message:         fmt.Sprintf("A provider is interested in %s", req.Title()),
		RelatedEntityID: intPtr(interest.ID),
	})
	return interest, nil
}

// AcceptResult carries the accepted interest and its chat room. Created is false when an existing room was reused.
type AcceptResult struct {
	Interest *models.Interest `json:"interest"`
	ChatRoom *models.ChatRoom `json:"chatRoom"`
	Created  bool             `json:"-"`
}

// AcceptInterest opens, or reuses, the chat room between the client and the provider.
func (s *Service) AcceptInterest(ctx context.Context, clientID, interestID int) (*AcceptResult, error) {
	var (
		result AcceptResult
		notes  []*models.Notification
	)

	err := s.store.WithTx(ctx, func(q Queries) error {
		interest, err := q.GetInterestForOwner(ctx, interestID, clientID)
		if err != nil {
			return err
		}
		if interest.Status == models.StatusRejected {
			return apperr.InvalidState("Interest was already rejected")
		}
		provider, err := q.GetProvider(ctx, interest.ProviderID)
		if err != nil {
			return err
		}

		room, err := q.FindChatRoom(ctx, interest.RequestID, clientID, provider.UserID)
		switch {
		case err == nil:
		case apperr.Is(err, apperr.KindNotFound):
			room = &models.ChatRoom{
				RequestID:  intPtr(interest.RequestID),
				ClientID:   clientID,
				ProviderID: provider.UserID,
				Status:     models.ChatRoomActive,
			}
			if err := q.CreateChatRoom(ctx, room); err != nil {
				return err
			}
			if err := q.CreateMessage(ctx, &models.Message{RoomID: room.ID, Content: welcomeMessage, IsSystem: true}); err != nil {
				return err
			}
			result.Created = true
		default:
			return err
		}

		transition := interest.Status != models.StatusAccepted
		interest.Status = models.StatusAccepted
		interest.ChatRoomID = intPtr(room.ID)
		if err := q.UpdateInterest(ctx, interest); err != nil {
			return err
		}

		if transition {
			n, err := s.notifier.Record(ctx, q, provider.UserID, notify.Note{
				Type:            models.NotificationInterestAccepted,
				Message:         "Your interest was accepted. A chat room is ready.",
				RelatedEntityID: intPtr(room.ID),
			})
			if err != nil {
				return err
			}
			notes = append(notes, n)
		}

		result.Interest = interest
		result.ChatRoom = room
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, notes)
	return &result, nil
}

// RejectInterest declines a pending interest on one of the client's requests.
func (s *Service) RejectInterest(ctx context.Context, clientID, interestID int, reason string) (*models.Interest, error) {
	var (
		rejected *models.Interest
		notes    []*models.Notification
	)

	err := s.store.WithTx(ctx, func(q Queries) error {
		interest, err := q.GetInterestForOwner(ctx, interestID, clientID)
		if err != nil {
			return err
		}
		if interest.Status == models.StatusAccepted {
			return apperr.InvalidState("Accepted interest cannot be rejected")
		}
		provider, err := q.GetProvider(ctx, interest.ProviderID)
		if err != nil {
			return err
		}

		transition := interest.Status != models.StatusRejected
		interest.Status = models.StatusRejected
		if reason != "" {
			interest.Reason = &reason
		}
		if err := q.UpdateInterest(ctx, interest); err != nil {
			return err
		}

		if transition {
			message := "Your interest was declined"
			if reason != "" {
				message += ": " + reason
			}
			n, err := s.notifier.Record(ctx, q, provider.UserID, notify.Note{
				Type:            models.NotificationInterestRejected,
				Message:         message,
				RelatedEntityID: intPtr(interest.ID),
			})
			if err != nil {
				return err
			}
			notes = append(notes, n)
		}
		rejected = interest
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, notes)
	return rejected, nil
}

// WithdrawInterest deletes one of the caller's interests unless it was already accepted.
func (s *Service) WithdrawInterest(ctx context.Context, userID, interestID int) error {
	provider, err := s.store.GetProviderByUserID(ctx, userID)
	if err != nil {
		return err
	}

	var owner, requestID int
	var title string
	err = s.store.WithTx(ctx, func(q Queries) error {
		interest, err := q.GetInterest(ctx, interestID)
		if err != nil {
			return err
		}
		if interest.ProviderID != provider.ID {
			return apperr.NotFound("Interest not found")
		}
		if interest.Status == models.StatusAccepted {
			return apperr.InvalidState("Accepted interest cannot be withdrawn")
		}
		req, err := q.GetRequest(ctx, interest.RequestID)
		if err != nil {
			return err
		}
		owner, requestID, title = req.UserID, req.ID, req.Title()
		return q.DeleteInterest(ctx, interest.ID)
	})
	if err != nil {
		return err
	}

	s.notify(ctx, owner, notify.Note{
		Type:            models.NotificationInterestWithdrawn,
		Message:         fmt.Sprintf("A provider withdrew their interest in %s", title),
		RelatedEntityID: intPtr(requestID),
	})
	return nil
}

func (s *Service) ProviderInterests(ctx context.Context, userID int, page Page) ([]models.Interest, error) {
	provider, err := s.store.GetProviderByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListInterestsByProvider(ctx, provider.ID, page.Limit, page.Offset)
}

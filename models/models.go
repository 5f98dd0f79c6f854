package models

import (
	"fmt"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleServiceProvider Role = "service_provider"
	RoleClient          Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleServiceProvider, RoleClient:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type RequestStatus string

const (
	RequestOpen    RequestStatus = "open"
	RequestClosed  RequestStatus = "closed"
	RequestPending RequestStatus = "pending"
)

// ProposalStatus is shared by bids and interests.
type ProposalStatus string

const (
	StatusPending  ProposalStatus = "pending"
	StatusAccepted ProposalStatus = "accepted"
	StatusRejected ProposalStatus = "rejected"
)

type ChatRoomStatus string

const (
	ChatRoomActive ChatRoomStatus = "active"
	ChatRoomClosed ChatRoomStatus = "closed"
)

type NotificationType string

const (
	NotificationNewRequest        NotificationType = "new_request"
	NotificationNewBid            NotificationType = "new_bid"
	NotificationBidAccepted       NotificationType = "bid_accepted"
	NotificationBidConfirmed      NotificationType = "bid_confirmed"
	NotificationInterestReceived  NotificationType = "interest_received"
	NotificationInterestAccepted  NotificationType = "interest_accepted"
	NotificationInterestRejected  NotificationType = "interest_rejected"
	NotificationInterestWithdrawn NotificationType = "interest_withdrawn"
)

// Пользователь
type User struct {
	ID           int       `db:"id" json:"id"`
	Name         string    `db:"name" json:"name" validate:"required,max=100"`
	Email        string    `db:"email" json:"email" validate:"required,email"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role" validate:"required,oneof=admin service_provider client"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"-"`
}

// Provider is the profile of a service_provider user.
type Provider struct {
	ID                int       `db:"id" json:"id"`
	UserID            int       `db:"user_id" json:"userId"`
	Address           string    `db:"address" json:"address"`
	Latitude          *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude         *float64  `db:"longitude" json:"longitude,omitempty"`
	CollegeID         *int      `db:"college_id" json:"collegeId,omitempty"`
	CompletedRequests int       `db:"completed_requests" json:"completedRequests"`
	Rating            float64   `db:"rating" json:"rating"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"-"`
}

type Request struct {
	ID              int           `db:"id" json:"id"`
	UserID          int           `db:"user_id" json:"userId"`
	IsService       bool          `db:"is_service" json:"isService"`
	ServiceID       *int          `db:"service_id" json:"serviceId,omitempty"`
	ProductName     *string       `db:"product_name" json:"productName,omitempty"`
	Description     string        `db:"description" json:"description"`
	DesiredPrice    float64       `db:"desired_price" json:"desiredPrice"`
	Location        string        `db:"location" json:"location"`
	Latitude        *float64      `db:"latitude" json:"latitude,omitempty"`
	Longitude       *float64      `db:"longitude" json:"longitude,omitempty"`
	CollegeFilterID *int          `db:"college_filter_id" json:"collegeFilterId,omitempty"`
	AllowInterests  bool          `db:"allow_interests" json:"allowInterests"`
	Status          RequestStatus `db:"status" json:"status"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `db:"updated_at" json:"-"`
}

// Title is a short human label used in notification texts.
func (r *Request) Title() string {
	if r.ProductName != nil && *r.ProductName != "" {
		return *r.ProductName
	}
	return fmt.Sprintf("request #%d", r.ID)
}

// Предложение
type Bid struct {
	ID                           int            `db:"id" json:"id"`
	RequestID                    int            `db:"request_id" json:"requestId"`
	ProviderID                   int            `db:"provider_id" json:"providerId"`
	Price                        float64        `db:"price" json:"price"`
	Message                      *string        `db:"message" json:"message,omitempty"`
	IsGraduateOfRequestedCollege bool           `db:"is_graduate_of_requested_college" json:"isGraduateOfRequestedCollege"`
	Status                       ProposalStatus `db:"status" json:"status"`
	CreatedAt                    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt                    time.Time      `db:"updated_at" json:"-"`
}

type Interest struct {
	ID         int            `db:"id" json:"id"`
	RequestID  int            `db:"request_id" json:"requestId"`
	ProviderID int            `db:"provider_id" json:"providerId"`
	Status     ProposalStatus `db:"status" json:"status"`
	Reason     *string        `db:"reason" json:"reason,omitempty"`
	ChatRoomID *int           `db:"chat_room_id" json:"chatRoomId,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time      `db:"updated_at" json:"-"`
}

// ChatRoom links a client and a provider; both IDs are user ids.
type ChatRoom struct {
	ID         int            `db:"id" json:"id"`
	RequestID  *int           `db:"request_id" json:"requestId,omitempty"`
	ClientID   int            `db:"client_id" json:"clientId"`
	ProviderID int            `db:"provider_id" json:"providerId"`
	Status     ChatRoomStatus `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time      `db:"updated_at" json:"-"`
}

func (c *ChatRoom) HasParticipant(userID int) bool {
	return c.ClientID == userID || c.ProviderID == userID
}

// Peer returns the other participant of the room.
func (c *ChatRoom) Peer(userID int) int {
	if c.ClientID == userID {
		return c.ProviderID
	}
	return c.ClientID
}

type Message struct {
	ID        int       `db:"id" json:"id"`
	RoomID    int       `db:"room_id" json:"roomId"`
	SenderID  *int      `db:"sender_id" json:"senderId,omitempty"`
	Content   string    `db:"content" json:"content"`
	IsSystem  bool      `db:"is_system" json:"isSystem"`
	IsRead    bool      `db:"is_read" json:"isRead"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Notification struct {
	ID              int              `db:"id" json:"id"`
	UserID          int              `db:"user_id" json:"userId"`
	Type            NotificationType `db:"type" json:"type"`
	Message         string           `db:"message" json:"message"`
	RelatedEntityID *int             `db:"related_entity_id" json:"relatedEntityId,omitempty"`
	IsRead          bool             `db:"is_read" json:"isRead"`
	CreatedAt       time.Time        `db:"created_at" json:"createdAt"`
}

type Category struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name" validate:"required,max=100"`
	Description string    `db:"description" json:"description" validate:"max=500"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"-"`
}

type Product struct {
	ID          int       `db:"id" json:"id"`
	CategoryID  *int      `db:"category_id" json:"categoryId,omitempty"`
	Name        string    `db:"name" json:"name" validate:"required,max=100"`
	Description string    `db:"description" json:"description" validate:"max=1000"`
	Price       float64   `db:"price" json:"price" validate:"gte=0"`
	ImageURL    string    `db:"image_url" json:"imageUrl" validate:"omitempty,url"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"-"`
}

type Service struct {
	ID         int       `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	CategoryID *int      `db:"category_id" json:"categoryId,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type College struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// ProviderFilter drives nearby-provider matching.
type ProviderFilter struct {
	ServiceID *int
	CollegeID *int
	Near      *GeoPoint
	RadiusKm  float64
}

// FeedFilter drives the provider request feed.
type FeedFilter struct {
	Near     *GeoPoint
	RadiusKm float64
	// OnlyServices restricts the feed to service requests whose service is in ServiceIDs.
	OnlyServices bool
	ServiceIDs   []int
	Limit        int
	Offset       int
}

package handlers

import (
	"context"

	"campusmarket/models"
)

// StorageInterface is the direct storage access of handlers that need no domain service.
type StorageInterface interface {
	ListNotifications(ctx context.Context, userID int, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID int) (int, error)
	MarkNotificationRead(ctx context.Context, id, userID int) error
	MarkAllNotificationsRead(ctx context.Context, userID int) (int64, error)

	ListChatRoomsForUser(ctx context.Context, userID int) ([]models.ChatRoom, error)
	GetChatRoom(ctx context.Context, id int) (*models.ChatRoom, error)
	ListMessages(ctx context.Context, roomID, limit, offset int) ([]models.Message, error)

	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, id int) (*models.Category, error)
	ListCategories(ctx context.Context, limit, offset int) ([]models.Category, int, error)
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int) error
	DeleteCategories(ctx context.Context, ids []int) (int64, error)

	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id int) (*models.Product, error)
	ListProducts(ctx context.Context, categoryID *int, limit, offset int) ([]models.Product, int, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int) error
	DeleteProducts(ctx context.Context, ids []int) (int64, error)

	ListServices(ctx context.Context) ([]models.Service, error)
	ListColleges(ctx context.Context) ([]models.College, error)
}

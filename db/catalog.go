package db

import (
	"context"
	"database/sql"
	"errors"

	"campusmarket/internal/apperr"
	"campusmarket/models"

	sq "github.com/Masterminds/squirrel"
)

// Справочники: категории, товары, услуги, колледжи

func (s *Storage) CreateCategory(ctx context.Context, c *models.Category) error {
	query := `
        INSERT INTO categories (name, description)
        VALUES ($1, $2)
        RETURNING id, created_at, updated_at`
	err := s.ext.QueryRowxContext(ctx, query, c.Name, c.Description).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return conflict(err, "Category already exists")
}

func (s *Storage) GetCategory(ctx context.Context, id int) (*models.Category, error) {
	c := &models.Category{}
	if err := s.get(ctx, c, `SELECT * FROM categories WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "Category not found")
	}
	return c, nil
}

func (s *Storage) ListCategories(ctx context.Context, limit, offset int) ([]models.Category, int, error) {
	var total int
	if err := s.get(ctx, &total, `SELECT COUNT(1) FROM categories`); err != nil {
		return nil, 0, internal(err)
	}
	var out []models.Category
	query := `SELECT * FROM categories ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2`
	if err := s.selectAll(ctx, &out, query, limit, offset); err != nil {
		return nil, 0, internal(err)
	}
	return out, total, nil
}

func (s *Storage) UpdateCategory(ctx context.Context, c *models.Category) error {
	query := `
        UPDATE categories SET name = $1, description = $2, updated_at = NOW()
        WHERE id = $3
        RETURNING created_at, updated_at`
	err := s.ext.QueryRowxContext(ctx, query, c.Name, c.Description, c.ID).Scan(&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("Category not found")
	}
	return conflict(err, "Category already exists")
}

func (s *Storage) DeleteCategory(ctx context.Context, id int) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	return affectedOrNotFound(res, err, "Category not found")
}

func (s *Storage) DeleteCategories(ctx context.Context, ids []int) (int64, error) {
	n, err := s.execBuilt(ctx, s.builder.Delete("categories").Where(sq.Eq{"id": ids}))
	return n, internal(err)
}

func (s *Storage) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
        INSERT INTO products (category_id, name, description, price, image_url)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`
	err := s.ext.QueryRowxContext(ctx, query, p.CategoryID, p.Name, p.Description, p.Price, p.ImageURL).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return internal(err)
}

func (s *Storage) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	p := &models.Product{}
	if err := s.get(ctx, p, `SELECT * FROM products WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "Product not found")
	}
	return p, nil
}

// ListProducts pages through products, optionally within one category.
func (s *Storage) ListProducts(ctx context.Context, categoryID *int, limit, offset int) ([]models.Product, int, error) {
	count := s.builder.Select("COUNT(1)").From("products")
	list := s.builder.Select("*").From("products").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	if categoryID != nil {
		count = count.Where(sq.Eq{"category_id": *categoryID})
		list = list.Where(sq.Eq{"category_id": *categoryID})
	}

	var total int
	if err := s.getBuilt(ctx, &total, count); err != nil {
		return nil, 0, internal(err)
	}
	var out []models.Product
	if err := s.selectBuilt(ctx, &out, list); err != nil {
		return nil, 0, internal(err)
	}
	return out, total, nil
}

func (s *Storage) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
        UPDATE products SET category_id = $1, name = $2, description = $3, price = $4, image_url = $5, updated_at = NOW()
        WHERE id = $6
        RETURNING created_at, updated_at`
	err := s.ext.QueryRowxContext(ctx, query, p.CategoryID, p.Name, p.Description, p.Price, p.ImageURL, p.ID).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	return notFound(err, "Product not found")
}

func (s *Storage) DeleteProduct(ctx context.Context, id int) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	return affectedOrNotFound(res, err, "Product not found")
}

func (s *Storage) DeleteProducts(ctx context.Context, ids []int) (int64, error) {
	n, err := s.execBuilt(ctx, s.builder.Delete("products").Where(sq.Eq{"id": ids}))
	return n, internal(err)
}

func (s *Storage) ListServices(ctx context.Context) ([]models.Service, error) {
	var out []models.Service
	if err := s.selectAll(ctx, &out, `SELECT * FROM services ORDER BY name`); err != nil {
		return nil, internal(err)
	}
	return out, nil
}

func (s *Storage) ListColleges(ctx context.Context) ([]models.College, error) {
	var out []models.College
	if err := s.selectAll(ctx, &out, `SELECT * FROM colleges ORDER BY name`); err != nil {
		return nil, internal(err)
	}
	return out, nil
}

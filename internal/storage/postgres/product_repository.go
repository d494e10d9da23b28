package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

var _ domain.ProductRepository = (*productRepository)(nil)

func (r *productRepository) Create(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin product insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	images, err := json.Marshal(product.Images)
	if err != nil {
		return fmt.Errorf("marshal product images: %w", err)
	}

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO products (
			id, number, name, description, price_minor, category_id,
			images, version, created_at, updated_at
		) VALUES ($1, nextval('product_number_seq'), $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING number
	`,
		product.ID, product.Name, product.Description, product.PriceMinor,
		nullString(product.CategoryID), images, product.Version,
		product.CreatedAt, product.UpdatedAt,
	).Scan(&product.Number)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	for _, v := range product.Variants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO product_variants (product_id, size, color, stock)
			VALUES ($1, $2, $3, $4)
		`, product.ID, v.Size, v.Color, v.Stock)
		if err != nil {
			return fmt.Errorf("insert product variant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit product insert tx: %w", err)
	}
	return nil
}

func (r *productRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	product, err := r.scanProduct(ctx, r.db.QueryRowContext(ctx, `
		SELECT id, number, name, description, price_minor, category_id,
		       images, version, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	product.Variants, err = r.loadVariants(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (r *productRepository) List(limit int) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, number, name, description, price_minor, category_id,
		       images, version, created_at, updated_at
		FROM products
		ORDER BY number`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		product, err := r.scanProduct(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	for i := range products {
		products[i].Variants, err = r.loadVariants(ctx, products[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return products, nil
}

func (r *productRepository) Save(product domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin product update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	images, err := json.Marshal(product.Images)
	if err != nil {
		return fmt.Errorf("marshal product images: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price_minor = $3, category_id = $4,
		    images = $5, version = version + 1, updated_at = $6
		WHERE id = $7 AND version = $8
	`,
		product.Name, product.Description, product.PriceMinor,
		nullString(product.CategoryID), images, time.Now().UTC(),
		product.ID, product.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("product update rows affected: %w", err)
	}
	if affected == 0 {
		if exists, checkErr := r.exists(ctx, tx, product.ID); checkErr != nil {
			return checkErr
		} else if !exists {
			return &domain.ProductNotFoundError{ProductID: product.ID}
		}
		return domain.ErrVersionConflict
	}

	// Варианты заменяются целиком; остатки приходят из доменного снимка.
	if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("clear product variants: %w", err)
	}
	for _, v := range product.Variants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO product_variants (product_id, size, color, stock)
			VALUES ($1, $2, $3, $4)
		`, product.ID, v.Size, v.Color, v.Stock)
		if err != nil {
			return fmt.Errorf("replace product variant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit product update tx: %w", err)
	}
	return nil
}

// DecrementVariantStock выполняет условное списание на стороне базы:
// UPDATE применяется только к строке с достаточным остатком, поэтому
// два конкурентных заказа на последние единицы не могут пройти оба.
func (r *productRepository) DecrementVariantStock(productID, size, color string, qty int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE product_variants
		SET stock = stock - $1
		WHERE product_id = $2 AND size = $3 AND color = $4 AND stock >= $1
	`, qty, productID, size, color)
	if err != nil {
		return fmt.Errorf("decrement variant stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	return r.classifyDecrementFailure(ctx, productID, size, color, qty)
}

func (r *productRepository) IncrementVariantStock(productID, size, color string, qty int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE product_variants
		SET stock = stock + $1
		WHERE product_id = $2 AND size = $3 AND color = $4
	`, qty, productID, size, color)
	if err != nil {
		return fmt.Errorf("increment variant stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment rows affected: %w", err)
	}
	if affected == 0 {
		return r.classifyDecrementFailure(ctx, productID, size, color, 0)
	}
	return nil
}

// classifyDecrementFailure различает «товара нет», «варианта нет»
// и «остатка не хватает», чтобы сервис получил типизированную ошибку.
func (r *productRepository) classifyDecrementFailure(ctx context.Context, productID, size, color string, qty int32) error {
	var stock sql.NullInt32
	err := r.db.QueryRowContext(ctx, `
		SELECT stock FROM product_variants
		WHERE product_id = $1 AND size = $2 AND color = $3
	`, productID, size, color).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		exists, checkErr := r.exists(ctx, r.db, productID)
		if checkErr != nil {
			return checkErr
		}
		if !exists {
			return &domain.ProductNotFoundError{ProductID: productID}
		}
		return &domain.VariantNotFoundError{ProductID: productID, Size: size, Color: color}
	}
	if err != nil {
		return fmt.Errorf("inspect variant stock: %w", err)
	}
	return &domain.InsufficientStockError{
		ProductID: productID,
		Size:      size,
		Color:     color,
		Available: stock.Int32,
		Requested: qty,
	}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *productRepository) exists(ctx context.Context, q queryer, productID string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = $1`, productID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check product existence: %w", err)
	}
	return true, nil
}

func (r *productRepository) loadVariants(ctx context.Context, productID string) ([]domain.Variant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT size, color, stock
		FROM product_variants
		WHERE product_id = $1
		ORDER BY size, color
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("select product variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.Size, &v.Color, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant row: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant rows: %w", err)
	}
	return variants, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *productRepository) scanProduct(_ context.Context, row rowScanner) (domain.Product, error) {
	var (
		product  domain.Product
		category sql.NullString
		images   []byte
	)
	err := row.Scan(
		&product.ID, &product.Number, &product.Name, &product.Description,
		&product.PriceMinor, &category, &images, &product.Version,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	product.CategoryID = category.String
	if len(images) > 0 {
		if err := json.Unmarshal(images, &product.Images); err != nil {
			return domain.Product{}, fmt.Errorf("unmarshal product images: %w", err)
		}
	}
	return product, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

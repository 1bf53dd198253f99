package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/propfolio/internal/model"
)

// PostgresPropertyRepo はPostgreSQLを使用した物件リポジトリ。
type PostgresPropertyRepo struct {
	db *sql.DB
}

// NewPostgresPropertyRepo はPostgresPropertyRepoを生成する。
func NewPostgresPropertyRepo(db *sql.DB) *PostgresPropertyRepo {
	return &PostgresPropertyRepo{db: db}
}

// FindByID は指定IDの物件を取得する。見つからない場合はnilを返す。
func (r *PostgresPropertyRepo) FindByID(ctx context.Context, id string) (*model.Property, error) {
	p := &model.Property{}
	var imagesJSON []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, address_line1, address_line2, city, postcode,
		        price, bedrooms, bathrooms, description, images, created_at, updated_at
		 FROM properties WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Status, &p.AddressLine1, &p.AddressLine2, &p.City, &p.Postcode,
		&p.Price, &p.Bedrooms, &p.Bathrooms, &p.Description, &imagesJSON, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("物件の取得に失敗しました: %w", err)
	}

	if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
		return nil, fmt.Errorf("画像リストの読み取りに失敗しました: %w", err)
	}

	return p, nil
}

// ListAll は全物件を作成日時の降順で返す。
func (r *PostgresPropertyRepo) ListAll(ctx context.Context) ([]*model.Property, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, address_line1, address_line2, city, postcode,
		        price, bedrooms, bathrooms, description, images, created_at, updated_at
		 FROM properties ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("物件一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var properties []*model.Property
	for rows.Next() {
		p := &model.Property{}
		var imagesJSON []byte
		if err := rows.Scan(&p.ID, &p.Status, &p.AddressLine1, &p.AddressLine2, &p.City, &p.Postcode,
			&p.Price, &p.Bedrooms, &p.Bathrooms, &p.Description, &imagesJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("物件行の読み取りに失敗しました: %w", err)
		}
		if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
			return nil, fmt.Errorf("画像リストの読み取りに失敗しました: %w", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("物件一覧の走査に失敗しました: %w", err)
	}
	return properties, nil
}

// Create は物件を作成する。
func (r *PostgresPropertyRepo) Create(ctx context.Context, p *model.Property) error {
	imagesJSON, err := marshalImages(p.Images)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO properties (id, status, address_line1, address_line2, city, postcode,
		                         price, bedrooms, bathrooms, description, images, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.Status, p.AddressLine1, p.AddressLine2, p.City, p.Postcode,
		p.Price, p.Bedrooms, p.Bathrooms, p.Description, imagesJSON, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("物件の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は物件情報を上書き更新する。対象が存在しない場合はエラーを返す。
func (r *PostgresPropertyRepo) Update(ctx context.Context, p *model.Property) error {
	imagesJSON, err := marshalImages(p.Images)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE properties
		 SET status = $2, address_line1 = $3, address_line2 = $4, city = $5, postcode = $6,
		     price = $7, bedrooms = $8, bathrooms = $9, description = $10, images = $11, updated_at = NOW()
		 WHERE id = $1`,
		p.ID, p.Status, p.AddressLine1, p.AddressLine2, p.City, p.Postcode,
		p.Price, p.Bedrooms, p.Bathrooms, p.Description, imagesJSON,
	)
	if err != nil {
		return fmt.Errorf("物件の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("物件が見つかりません: %s", p.ID)
	}
	return nil
}

// Delete は指定IDの物件を削除する。
// 関連するfavorite_propertiesはCASCADE削除される。
func (r *PostgresPropertyRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM properties WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("物件の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("物件が見つかりません: %s", id)
	}
	return nil
}

// marshalImages は画像パスリストをJSONB格納用にシリアライズする。
// nilスライスは空配列として格納する。
func marshalImages(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("画像リストのシリアライズに失敗しました: %w", err)
	}
	return b, nil
}

// compile-time interface check
var _ PropertyRepository = (*PostgresPropertyRepo)(nil)

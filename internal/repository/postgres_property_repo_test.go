package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/propfolio/internal/model"
)

// PostgresPropertyRepoはPropertyRepositoryインターフェースを満たすことを検証
func TestPostgresPropertyRepo_ImplementsInterface(t *testing.T) {
	var _ PropertyRepository = (*PostgresPropertyRepo)(nil)
}

// NewPostgresPropertyRepoが正しく初期化されることを検証
func TestNewPostgresPropertyRepo_Initializes(t *testing.T) {
	repo := NewPostgresPropertyRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Propertyモデルのフィールドが正しく構築されることを検証
func TestPostgresPropertyRepo_PropertyModel_Fields(t *testing.T) {
	now := time.Now()
	p := &model.Property{
		ID:           "prop-id-1",
		Status:       model.PropertyStatusForSale,
		AddressLine1: "1 High Street",
		City:         "London",
		Postcode:     "SW1A 1AA",
		Price:        450000,
		Bedrooms:     3,
		Bathrooms:    2,
		Images:       []string{"property-images/prop-id-1/a.jpg"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if p.Status != model.PropertyStatusForSale {
		t.Errorf("p.Status = %q, want %q", p.Status, model.PropertyStatusForSale)
	}
	if p.Price != 450000 {
		t.Errorf("p.Price = %v, want 450000", p.Price)
	}
	if len(p.Images) != 1 {
		t.Errorf("len(p.Images) = %d, want 1", len(p.Images))
	}
}

// marshalImagesがnilスライスを空JSON配列として扱うことを検証
func TestMarshalImages_NilBecomesEmptyArray(t *testing.T) {
	b, err := marshalImages(nil)
	if err != nil {
		t.Fatalf("marshalImages returned error: %v", err)
	}
	if string(b) != "[]" {
		t.Errorf("marshalImages(nil) = %s, want []", b)
	}
}

// marshalImagesが順序を保持することを検証
func TestMarshalImages_PreservesOrder(t *testing.T) {
	b, err := marshalImages([]string{"b.jpg", "a.jpg"})
	if err != nil {
		t.Fatalf("marshalImages returned error: %v", err)
	}
	want := `["b.jpg","a.jpg"]`
	if string(b) != want {
		t.Errorf("marshalImages = %s, want %s", b, want)
	}
}

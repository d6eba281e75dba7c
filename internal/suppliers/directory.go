package suppliers

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/db/models"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
)

// Directory resolves supplier names for purchase order linking.
type Directory struct {
	repo *Repository
}

// NewDirectory wraps the repository for name lookups.
func NewDirectory(repo *Repository) *Directory {
	return &Directory{repo: repo}
}

// FindByName returns nil, nil when no supplier matches.
func (d *Directory) FindByName(ctx context.Context, tx *gorm.DB, name string) (*models.Supplier, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	repo := d.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	supplier, err := repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup supplier")
	}
	return supplier, nil
}

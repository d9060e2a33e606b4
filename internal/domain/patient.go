package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Patient struct {
	bun.BaseModel `bun:"table:patients"`

	ID        int64     `bun:"id,pk"`
	FirstName string    `bun:"first_name,notnull"`
	LastName  string    `bun:"last_name,notnull"`
	Email     string    `bun:"email"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (p *Patient) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}

package charge

import "context"

type Repository interface {
	CreateCharge(ctx context.Context, charge *Charge) error
	GetCharge(ctx context.Context, id string) (*Charge, error)
	ListChargesByPlan(ctx context.Context, planID string) ([]*Charge, error)
	DeleteCharge(ctx context.Context, id string) error
}

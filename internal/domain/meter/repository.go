package meter

import "context"

type Repository interface {
	CreateMeter(ctx context.Context, meter *Meter) error
	GetMeter(ctx context.Context, id string) (*Meter, error)
	GetMeterByCode(ctx context.Context, code string) (*Meter, error)
	ListMeters(ctx context.Context) ([]*Meter, error)
	DisableMeter(ctx context.Context, id string) error
}

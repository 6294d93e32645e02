package storage

import (
	"context"
	"fmt"
)

// Open builds the backend named by driver.
func Open(ctx context.Context, driver string, redisCfg RedisConfig, opts ...Option) (Backend, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(opts...), nil
	case DriverRedis:
		return NewRedis(ctx, redisCfg, opts...)
	}
	return nil, fmt.Errorf("storage: unknown driver %q", driver)
}

package auth

import (
	"context"
	"time"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/pkg/apperror"
)

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			SecretKey:                "test-secret",
			AccessTokenExpireMinutes: 30,
			BcryptCost:               4,
		},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fakeUsers map[int64]Account

func (f fakeUsers) LookupAccount(_ context.Context, id int64) (Account, error) {
	acct, ok := f[id]
	if !ok {
		return Account{}, apperror.NewNotFound("user", "")
	}
	return acct, nil
}

package migrate

import (
	"testing"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/db"
)

func TestPlanBoot(t *testing.T) {
	cases := []struct {
		name    string
		env     string
		auto    bool
		dialect db.Dialect
		want    bootAction
	}{
		{"sqlite always gets the schema", config.AppEnvProd, false, db.DialectSQLite, bootSQLiteSchema},
		{"dev postgres with auto-migrate", config.AppEnvDev, true, db.DialectPostgres, bootGooseUp},
		{"dev postgres without the flag", config.AppEnvDev, false, db.DialectPostgres, bootSkip},
		{"prod postgres ignores the flag", config.AppEnvProd, true, db.DialectPostgres, bootSkip},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{
				App:          config.AppConfig{Env: tc.env},
				FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: tc.auto},
			}
			if got := planBoot(cfg, tc.dialect); got != tc.want {
				t.Fatalf("planBoot = %s, want %s", got, tc.want)
			}
		})
	}
}

package helpers

import (
	"os"
	"path/filepath"

	"github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/atelier-ops/atelier-sync/internal/config"
)

// ScheduledJob declares a cron job in the generated config
type ScheduledJob struct {
	Entity string
	Cron   string
	DryRun bool
}

// JWTSecret signs the bearer tokens the helpers send
const JWTSecret = "integration-signing-secret"

// WriteConfigYAML writes a memory-store config pointing at erpURL and
// returns its path. Callers authenticate with tokens signed by JWTSecret.
func WriteConfigYAML(dir, erpURL, token string, maxCalls int, jobs ...ScheduledJob) string {
	cfg := config.Config{
		ERP: config.ERPConfig{
			BaseURL:  erpURL,
			Token:    token,
			MaxCalls: maxCalls,
			Timeout:  "5s",
		},
		Auth: &config.AuthConfig{JWTSecret: JWTSecret},
	}
	if len(jobs) > 0 {
		cfg.Schedule = &config.ScheduleConfig{}
		for _, j := range jobs {
			cfg.Schedule.Jobs = append(cfg.Schedule.Jobs, config.ScheduleJob{
				Entity: j.Entity,
				Cron:   j.Cron,
				DryRun: j.DryRun,
			})
		}
	}

	data, err := yaml.Marshal(&cfg)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	path := filepath.Join(dir, "config.yaml")
	gomega.Expect(os.WriteFile(path, data, 0600)).To(gomega.Succeed())
	return path
}

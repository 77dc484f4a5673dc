package app

import (
	"encoding/json"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/KhaosKoder/khaos-settings/internal/config"
	"github.com/KhaosKoder/khaos-settings/internal/daemon"
	"github.com/KhaosKoder/khaos-settings/internal/db/models"
	"github.com/KhaosKoder/khaos-settings/internal/logger"
	"github.com/KhaosKoder/khaos-settings/internal/rowversion"
	"github.com/KhaosKoder/khaos-settings/internal/secret"
)

// openStore loads the config and opens the database for CLI commands.
func openStore() (*gorm.DB, error) {
	if cfg, err = config.ReadConfig(configPath); err != nil {
		return nil, err
	}

	// keep CLI output clean, log warnings and worse only
	if cfg.Log.LogLevel == "" || cfg.Log.LogLevel == "info" {
		cfg.Log.LogLevel = "warn"
	}

	if err = logger.Init(cfg.Log); err != nil {
		return nil, err
	}

	db, err := daemon.OpenDB(&cfg)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.Setting{}, &models.SettingHistory{}); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return db, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v) //nolint:wrapcheck
}

// settingView is the CLI JSON shape of a setting row.
type settingView struct {
	ID            uint64    `json:"id"`
	ApplicationID string    `json:"applicationId,omitempty"`
	InstanceID    string    `json:"instanceId,omitempty"`
	Key           string    `json:"key"`
	Value         *string   `json:"value,omitempty"`
	BinaryValue   []byte    `json:"binaryValue,omitempty"`
	IsSecret      bool      `json:"isSecret,omitempty"`
	Encrypted     bool      `json:"encrypted,omitempty"`
	RowVersion    string    `json:"rowVersion"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
	ModifiedBy    string    `json:"modifiedBy"`
	ModifiedAt    time.Time `json:"modifiedAt"`
	Comment       string    `json:"comment,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// viewOf converts a row for display, masking secret values unless asked
// otherwise.
func viewOf(row *models.Setting, showSecrets bool) settingView {
	v := settingView{
		ID:            row.ID,
		ApplicationID: row.ApplicationID,
		InstanceID:    row.InstanceID,
		Key:           row.Key,
		Value:         row.Value,
		BinaryValue:   row.BinaryValue,
		IsSecret:      row.IsSecret,
		Encrypted:     row.ValueEncrypted,
		RowVersion:    rowversion.ToHex(row.RowVersion),
		CreatedBy:     row.CreatedBy,
		CreatedAt:     row.CreatedAt,
		ModifiedBy:    row.ModifiedBy,
		ModifiedAt:    row.ModifiedAt,
		Comment:       row.Comment,
		Notes:         row.Notes,
	}

	if row.IsSecret && !showSecrets && row.Value != nil {
		masked := secret.Mask(*row.Value)
		v.Value = &masked
	}

	return v
}

// changedByOrUser falls back to the OS user when --changed-by is not given.
func changedByOrUser(changedBy string) string {
	if changedBy != "" {
		return changedBy
	}

	if u := os.Getenv("USER"); u != "" {
		return u
	}

	return "cli"
}

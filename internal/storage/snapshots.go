package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulsemetrics/pulseboard/internal/engine"
	"github.com/pulsemetrics/pulseboard/internal/models"
)

// Store persists per-user feed snapshots. The engine stays the source of
// truth at runtime; rows here exist so a restart restores each feed.
type Store struct {
	db *gorm.DB
}

// NewStore wraps a gorm handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveSnapshot replaces the persisted state for one user in a single
// transaction, so a crash mid-save never leaves a half-written feed.
func (s *Store) SaveSnapshot(userID string, snap engine.Snapshot) error {
	rows, err := notificationRows(userID, snap.Notifications)
	if err != nil {
		return err
	}
	ruleRows, err := alertRuleRows(userID, snap.Rules)
	if err != nil {
		return err
	}
	settings, err := json.Marshal(snap.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.AlertRule{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		if len(ruleRows) > 0 {
			if err := tx.Create(&ruleRows).Error; err != nil {
				return err
			}
		}

		pref := models.Preference{UserID: userID, Settings: datatypes.JSON(settings)}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"settings", "updated_at"}),
		}).Create(&pref).Error
	})
}

// LoadSnapshot reads the persisted state for one user. The second return is
// false when the user has never been persisted.
func (s *Store) LoadSnapshot(userID string) (engine.Snapshot, bool, error) {
	var pref models.Preference
	err := s.db.Where("user_id = ?", userID).First(&pref).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return engine.Snapshot{}, false, nil
	case err != nil:
		return engine.Snapshot{}, false, err
	}

	var prefs engine.Preferences
	if err := json.Unmarshal(pref.Settings, &prefs); err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("unmarshal preferences: %w", err)
	}

	var rows []models.Notification
	if err := s.db.Where("user_id = ?", userID).Order("timestamp DESC").Find(&rows).Error; err != nil {
		return engine.Snapshot{}, false, err
	}
	notifications, err := notificationsFromRows(rows)
	if err != nil {
		return engine.Snapshot{}, false, err
	}

	var ruleRows []models.AlertRule
	if err := s.db.Where("user_id = ?", userID).Order("position ASC").Find(&ruleRows).Error; err != nil {
		return engine.Snapshot{}, false, err
	}
	rules, err := rulesFromRows(ruleRows)
	if err != nil {
		return engine.Snapshot{}, false, err
	}

	return engine.Snapshot{
		Notifications: notifications,
		Preferences:   prefs,
		Rules:         rules,
	}, true, nil
}

// DeleteUser removes every persisted row for one user.
func (s *Store) DeleteUser(userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.AlertRule{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.Preference{}).Error
	})
}

func notificationRows(userID string, items []engine.Notification) ([]models.Notification, error) {
	rows := make([]models.Notification, 0, len(items))
	for _, item := range items {
		metadata, err := json.Marshal(item.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata for %s: %w", item.ID, err)
		}
		channels, err := json.Marshal(item.Channels)
		if err != nil {
			return nil, fmt.Errorf("marshal channels for %s: %w", item.ID, err)
		}
		rows = append(rows, models.Notification{
			BaseModel:   models.BaseModel{ID: item.ID},
			UserID:      userID,
			Type:        string(item.Type),
			Priority:    string(item.Priority),
			Title:       item.Title,
			Message:     item.Message,
			Timestamp:   item.Timestamp,
			Read:        item.Read,
			ActionURL:   item.ActionURL,
			ActionLabel: item.ActionLabel,
			Metadata:    datatypes.JSON(metadata),
			Channels:    datatypes.JSON(channels),
		})
	}
	return rows, nil
}

func notificationsFromRows(rows []models.Notification) ([]engine.Notification, error) {
	items := make([]engine.Notification, 0, len(rows))
	for _, row := range rows {
		item := engine.Notification{
			ID:          row.ID,
			Type:        engine.Type(row.Type),
			Priority:    engine.Priority(row.Priority),
			Title:       row.Title,
			Message:     row.Message,
			Timestamp:   row.Timestamp,
			Read:        row.Read,
			ActionURL:   row.ActionURL,
			ActionLabel: row.ActionLabel,
		}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &item.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for %s: %w", row.ID, err)
			}
		}
		if len(row.Channels) > 0 {
			if err := json.Unmarshal(row.Channels, &item.Channels); err != nil {
				return nil, fmt.Errorf("unmarshal channels for %s: %w", row.ID, err)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func alertRuleRows(userID string, rules []engine.Rule) ([]models.AlertRule, error) {
	rows := make([]models.AlertRule, 0, len(rules))
	for i, rule := range rules {
		conditions, err := json.Marshal(rule.Conditions)
		if err != nil {
			return nil, fmt.Errorf("marshal conditions for %s: %w", rule.ID, err)
		}
		channels, err := json.Marshal(rule.Channels)
		if err != nil {
			return nil, fmt.Errorf("marshal channels for %s: %w", rule.ID, err)
		}
		rows = append(rows, models.AlertRule{
			BaseModel:       models.BaseModel{ID: rule.ID},
			UserID:          userID,
			Name:            rule.Name,
			Type:            string(rule.Type),
			Conditions:      datatypes.JSON(conditions),
			Channels:        datatypes.JSON(channels),
			Active:          rule.Active,
			CooldownSeconds: int64(rule.Cooldown / time.Second),
			LastTriggered:   rule.LastTriggered,
			Position:        i,
		})
	}
	return rows, nil
}

func rulesFromRows(rows []models.AlertRule) ([]engine.Rule, error) {
	rules := make([]engine.Rule, 0, len(rows))
	for _, row := range rows {
		rule := engine.Rule{
			ID:            row.ID,
			Name:          row.Name,
			Type:          engine.RuleType(row.Type),
			Active:        row.Active,
			Cooldown:      time.Duration(row.CooldownSeconds) * time.Second,
			LastTriggered: row.LastTriggered,
		}
		if len(row.Conditions) > 0 {
			if err := json.Unmarshal(row.Conditions, &rule.Conditions); err != nil {
				return nil, fmt.Errorf("unmarshal conditions for %s: %w", row.ID, err)
			}
		}
		if len(row.Channels) > 0 {
			if err := json.Unmarshal(row.Channels, &rule.Channels); err != nil {
				return nil, fmt.Errorf("unmarshal channels for %s: %w", row.ID, err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

package db

import (
	"errors"
	"fmt"
	"socialconnect/internal/models"
	"socialconnect/internal/utils"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to PostgreSQL. TranslateError is on so unique violations
// surface as gorm.ErrDuplicatedKey.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("db: empty DATABASE_URL")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	log.Info("Database connection established")
	return conn, nil
}

// Migrate creates or updates the social schema.
func Migrate(conn *gorm.DB, log *zap.Logger) error {
	err := conn.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Follow{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Info("Database migration completed")
	return nil
}

// EnsureAdmin creates an active staff account, or promotes the existing
// account with the same email.
func EnsureAdmin(conn *gorm.DB, email, username, password string) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = conn.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		user.IsActive = true
		user.IsStaff = true
		user.Password = hash
		if err := conn.Save(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	user = models.User{
		Email:    email,
		Username: username,
		Password: hash,
		IsActive: true,
		IsStaff:  true,
		Profile:  &models.Profile{ProfileVisibility: true},
	}
	if err := conn.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

package models

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/dujiao-next/backoffice/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

// InitDefaultAdmin 初始化默认管理员账号，已有管理员时不做任何修改
func InitDefaultAdmin(username, password string) error {
	var count int64
	if err := DB.Model(&Admin{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = "admin"
	}
	generated := false
	if strings.TrimSpace(password) == "" {
		password = randomPassword()
		generated = true
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := Admin{
		Username:     username,
		PasswordHash: string(hash),
		IsSuper:      true,
		IsActive:     true,
	}
	if err := DB.Create(&admin).Error; err != nil {
		return err
	}

	if generated {
		logger.Warnw("default_admin_created_with_generated_password", "username", username, "password", password)
	} else {
		logger.Warnw("default_admin_created", "username", username, "password_hidden", true)
	}
	return nil
}

func randomPassword() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "change-me-now"
	}
	return hex.EncodeToString(buf)
}

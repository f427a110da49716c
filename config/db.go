package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func (db *DB) GormConnect() (*gorm.DB, error) {
	logrus.Infof("Connecting to database %s@%s:%s/%s", db.USER, db.HOST, db.PORT, db.NAME)
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		db.HOST, db.USER, db.PASSWORD, db.NAME, db.PORT, db.SSLMODE,
	)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}
